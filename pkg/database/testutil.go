package database

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool creates a pgxmock pool for store tests. The returned pool
// satisfies the postgres catalog store's DB interface. Call
// ExpectationsWereMet() at the end of each test.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}

// SQLiteTestDB wraps an in-memory SQLite database opened for a test.
type SQLiteTestDB struct {
	DB *sql.DB
}

// NewTestSQLite opens an in-memory SQLite database and applies migrations.
func NewTestSQLite(ctx context.Context, migrations fs.FS, logger *slog.Logger) (*SQLiteTestDB, error) {
	db, err := OpenSQLite(ctx, SQLiteConfig{Path: ":memory:"})
	if err != nil {
		return nil, err
	}
	if migrations != nil {
		if err := RunSQLiteMigrations(ctx, db, migrations, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &SQLiteTestDB{DB: db}, nil
}
