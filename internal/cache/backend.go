// Package cache stores rendered search envelopes keyed by query signature.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Backend.Get when the key does not exist.
var ErrMiss = errors.New("cache: key not found")

// Backend is a byte-oriented key-value store with TTL support.
type Backend interface {
	// Get returns the value at key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Scan returns every key matching a glob pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// NoopBackend caches nothing. It is used when caching is disabled or Redis
// was unreachable at startup.
type NoopBackend struct{}

var _ Backend = NoopBackend{}

func (NoopBackend) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (NoopBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NoopBackend) Del(context.Context, ...string) error { return nil }
func (NoopBackend) Scan(context.Context, string) ([]string, error) { return nil, nil }
func (NoopBackend) Ping(context.Context) error { return nil }
