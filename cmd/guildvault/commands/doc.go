// Package commands defines the guildvault CLI surface: serve (admin API),
// export (SQLite mirror) and stats (per-chat summary).
package commands
