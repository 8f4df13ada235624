// Package migrations embeds the notifications SQLite schema.
package migrations

import "embed"

// FS holds the notifications migration files.
//
//go:embed *.sql
var FS embed.FS
