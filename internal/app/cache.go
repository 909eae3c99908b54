package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Asdisarson/ss/internal/cache"
	"github.com/Asdisarson/ss/internal/config"
	"github.com/Asdisarson/ss/pkg/database"
)

const cacheBreakerOpenTimeout = 30 * time.Second

// openCache builds the search cache backend. Redis being unreachable at
// startup is not fatal: the coordinator then runs on the no-op backend and
// every lookup misses. ok reports whether Redis is in use.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend cache.Backend, closeFn func() error, ok bool) {
	noop := func() error { return nil }
	if !cfg.CacheEnabled {
		logger.Info("search cache disabled")
		return cache.NoopBackend{}, noop, false
	}

	client, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		_ = client.Close()
		logger.Warn("redis unavailable, search cache disabled",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
		return cache.NoopBackend{}, noop, false
	}

	logger.Info("redis search cache connected", slog.String("addr", cfg.RedisAddr))
	backend = cache.NewBreakerBackend(
		cache.NewRedisBackend(client),
		"redis-cache",
		uint32(cfg.CacheBreakerFailures),
		cacheBreakerOpenTimeout,
		logger,
	)
	return backend, client.Close, true
}
