package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Asdisarson/ss/pkg/httpclient"
)

// BreakerBackend short-circuits calls to a failing backend so searches do
// not wait on network timeouts while Redis is down. Misses are successes.
type BreakerBackend struct {
	next    Backend
	breaker *gobreaker.CircuitBreaker[any]
}

var _ Backend = (*BreakerBackend)(nil)

// NewBreakerBackend wraps next. The breaker opens after maxFailures
// consecutive failures and retries after openTimeout.
func NewBreakerBackend(next Backend, name string, maxFailures uint32, openTimeout time.Duration, logger *slog.Logger) *BreakerBackend {
	cfg := httpclient.DefaultCircuitBreakerConfig(name)
	cfg.Timeout = openTimeout

	settings := cfg.Settings(logger)
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= maxFailures
	}
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrMiss)
	}

	httpclient.CircuitBreakerState.WithLabelValues(name).Set(0)
	return &BreakerBackend{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the current breaker state.
func (b *BreakerBackend) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.breaker.Execute(func() (any, error) {
		return b.next.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	data, _ := v.([]byte)
	return data, nil
}

func (b *BreakerBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.next.Set(ctx, key, value, ttl)
	})
	return err
}

func (b *BreakerBackend) Del(ctx context.Context, keys ...string) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.next.Del(ctx, keys...)
	})
	return err
}

func (b *BreakerBackend) Scan(ctx context.Context, pattern string) ([]string, error) {
	v, err := b.breaker.Execute(func() (any, error) {
		return b.next.Scan(ctx, pattern)
	})
	if err != nil {
		return nil, err
	}
	keys, _ := v.([]string)
	return keys, nil
}

// Ping bypasses the breaker so health checks see the real backend state.
func (b *BreakerBackend) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
