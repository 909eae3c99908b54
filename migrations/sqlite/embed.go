// Package migrations embeds the SQLite catalog schema.
package migrations

import "embed"

// FS holds the *.up.sql files applied by database.RunSQLiteMigrations.
//
//go:embed *.up.sql
var FS embed.FS
