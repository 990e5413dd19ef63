// Package web serves the read-only admin API over the storage service:
// leaderboards, pending applications, statistics, group snapshots and user
// profiles, rate limited per remote host.
package web
