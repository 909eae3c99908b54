package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteConfig holds configuration for an embedded SQLite database.
type SQLiteConfig struct {
	// Path is a filesystem path or ":memory:".
	Path string
	// BusyTimeoutMs is how long a writer waits on a locked database.
	BusyTimeoutMs int
}

// DSN returns the modernc.org/sqlite connection string with pragmas applied.
func (c SQLiteConfig) DSN() string {
	busy := c.BusyTimeoutMs
	if busy <= 0 {
		busy = 5000
	}
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busy),
		"_pragma=foreign_keys(1)",
	}
	if c.Path != ":memory:" {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return "file:" + c.Path + "?" + strings.Join(pragmas, "&")
}

// OpenSQLite opens and pings an SQLite database. In-memory databases are
// limited to one connection so every query sees the same database.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
