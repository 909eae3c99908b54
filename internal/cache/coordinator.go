package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Asdisarson/ss/internal/domain"
)

// DefaultCompressThreshold is the payload size above which entries are
// gzip-compressed.
const DefaultCompressThreshold = 8192

const flushBatch = 500

// Coordinator reads and writes search envelopes through a Backend. It never
// returns backend errors to callers: failures are logged and treated as a
// miss or a no-op.
//
// Every Flush advances the generation. A writer that read the generation
// before computing a page cannot store that page once a later Flush has
// started, so a search racing a catalog sync never re-caches the old
// snapshot.
type Coordinator struct {
	backend    Backend
	threshold  int
	logger     *slog.Logger
	generation atomic.Uint64
}

// NewCoordinator creates a new cache coordinator. A non-positive threshold
// selects DefaultCompressThreshold.
func NewCoordinator(backend Backend, compressThreshold int, logger *slog.Logger) *Coordinator {
	if compressThreshold <= 0 {
		compressThreshold = DefaultCompressThreshold
	}
	return &Coordinator{backend: backend, threshold: compressThreshold, logger: logger}
}

// Get returns the cached envelope for sig. The plain key is tried first,
// then the compressed one.
func (c *Coordinator) Get(ctx context.Context, sig Signature) (*domain.Envelope, bool) {
	for _, compressed := range []bool{false, true} {
		key := sig.plainKey()
		if compressed {
			key = sig.compressedKey()
		}

		data, err := c.backend.Get(ctx, key)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			c.warn(ctx, "search cache read failed", key, err)
			cacheRequestsTotal.WithLabelValues(resultError).Inc()
			return nil, false
		}

		env, err := decodeEnvelope(data, compressed)
		if err != nil {
			c.warn(ctx, "discarding corrupt search cache entry", key, err)
			cacheRequestsTotal.WithLabelValues(resultError).Inc()
			c.Invalidate(ctx, sig)
			return nil, false
		}

		cacheRequestsTotal.WithLabelValues(resultHit).Inc()
		return env, true
	}

	cacheRequestsTotal.WithLabelValues(resultMiss).Inc()
	return nil, false
}

// Generation returns the current flush generation. Read it before loading
// the data a page is computed from and pass it to Set.
func (c *Coordinator) Generation() uint64 {
	return c.generation.Load()
}

// Set stores env under sig for ttl if no Flush has started since gen was
// read. Payloads above the compression threshold go to the compressed key;
// the other variant is removed so a later Get cannot return a stale copy.
func (c *Coordinator) Set(ctx context.Context, sig Signature, gen uint64, env *domain.Envelope, ttl time.Duration) {
	if c.generation.Load() != gen {
		cacheStaleWritesTotal.Inc()
		return
	}

	data, compressed, err := encodeEnvelope(env, c.threshold)
	if err != nil {
		c.warn(ctx, "search cache encode failed", sig.plainKey(), err)
		return
	}

	key, stale := sig.plainKey(), sig.compressedKey()
	if compressed {
		key, stale = stale, key
		cacheCompressedWritesTotal.Inc()
	}

	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		c.warn(ctx, "search cache write failed", key, err)
		return
	}
	if err := c.backend.Del(ctx, stale); err != nil {
		c.warn(ctx, "search cache delete failed", stale, err)
	}

	// A Flush that started during the write may have scanned before the key
	// landed.
	if c.generation.Load() != gen {
		cacheStaleWritesTotal.Inc()
		c.Invalidate(ctx, sig)
	}
}

// Invalidate removes both variants of sig.
func (c *Coordinator) Invalidate(ctx context.Context, sig Signature) {
	if err := c.backend.Del(ctx, sig.plainKey(), sig.compressedKey()); err != nil {
		c.warn(ctx, "search cache delete failed", sig.plainKey(), err)
	}
}

// Flush removes every search cache entry and returns how many keys were
// deleted. It runs after each catalog sync and advances the generation
// before scanning.
func (c *Coordinator) Flush(ctx context.Context) (int, error) {
	c.generation.Add(1)

	keys, err := c.backend.Scan(ctx, KeyPrefix+"*")
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(keys); start += flushBatch {
		end := min(start+flushBatch, len(keys))
		if err := c.backend.Del(ctx, keys[start:end]...); err != nil {
			return deleted, err
		}
		deleted += end - start
	}
	return deleted, nil
}

// Ping checks the backend.
func (c *Coordinator) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

func (c *Coordinator) warn(ctx context.Context, msg, key string, err error) {
	c.logger.WarnContext(ctx, msg,
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}
