package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Asdisarson/ss/internal/catalog"
	"github.com/Asdisarson/ss/internal/catalog/memory"
	"github.com/Asdisarson/ss/internal/catalog/postgres"
	"github.com/Asdisarson/ss/internal/catalog/sqlite"
	"github.com/Asdisarson/ss/internal/config"
	pgmigrations "github.com/Asdisarson/ss/migrations/postgres"
	sqlitemigrations "github.com/Asdisarson/ss/migrations/sqlite"
	"github.com/Asdisarson/ss/pkg/database"
)

// openStore opens the configured catalog store and applies its migrations.
// The returned close function releases the underlying connections.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Store, func() error, error) {
	opts := catalog.FilterOptions{Fuzzy: cfg.SearchFuzzyEnabled}

	switch cfg.CatalogDriver {
	case config.DriverPostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, pgmigrations.FS, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}
		logger.Info("postgres catalog store ready",
			slog.String("host", pgCfg.Host),
			slog.String("database", pgCfg.DBName),
		)
		return postgres.NewStore(pool, opts), func() error { pool.Close(); return nil }, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLite())
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunSQLiteMigrations(ctx, db, sqlitemigrations.FS, logger); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("run sqlite migrations: %w", err)
		}
		logger.Info("sqlite catalog store ready", slog.String("path", cfg.SQLitePath))
		return sqlite.NewStore(db, opts), db.Close, nil

	default:
		logger.Warn("in-memory catalog store selected; the catalog is lost on restart")
		return memory.NewStore(opts), func() error { return nil }, nil
	}
}
