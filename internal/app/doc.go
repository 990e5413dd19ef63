// Package app loads runtime settings and wires application dependencies for
// the CLI: codec, storage service, rate limiter and analytics tracker are
// built from Config and exposed via the Wire struct for commands to use.
package app
