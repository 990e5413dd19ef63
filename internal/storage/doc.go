// Package storage owns the persisted guild state: an encrypted JSON snapshot
// on disk, a mutex-guarded in-memory model, read queries over it, and an
// on-demand SQLite mirror for reporting.
//
// Mutations stage their changes on a deep copy of the state, persist it
// through the codec and an atomic temp-file-then-rename write, and only then
// swap the copy in as the live state. A failed persist therefore leaves both
// memory and disk at the previous good snapshot.
package storage
