// Package migrations embeds the analytics SQLite schema.
package migrations

import "embed"

// FS holds the analytics migration files.
//
//go:embed *.sql
var FS embed.FS
