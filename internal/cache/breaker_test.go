package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asdisarson/ss/pkg/logger"
)

type flakyBackend struct {
	NoopBackend
	calls atomic.Int32
	err   error
}

func (f *flakyBackend) Get(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return nil, ErrMiss
}

func TestBreakerBackend_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &flakyBackend{err: errors.New("dial tcp: connection refused")}
	b := NewBreakerBackend(next, "test-cache-open", 3, time.Minute, logger.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Get(ctx, "k")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), next.calls.Load(), "open breaker must not call the backend")
}

func TestBreakerBackend_MissIsNotAFailure(t *testing.T) {
	next := &flakyBackend{}
	b := NewBreakerBackend(next, "test-cache-miss", 2, time.Minute, logger.Discard())

	for i := 0; i < 5; i++ {
		_, err := b.Get(context.Background(), "k")
		assert.ErrorIs(t, err, ErrMiss)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerBackend_CoordinatorFailsOpen(t *testing.T) {
	next := &flakyBackend{err: errors.New("timeout")}
	b := NewBreakerBackend(next, "test-cache-coord", 1, time.Minute, logger.Discard())
	c := NewCoordinator(b, 0, logger.Discard())

	sig := NewSignature("x", 1, 25)
	for i := 0; i < 3; i++ {
		_, ok := c.Get(context.Background(), sig)
		assert.False(t, ok)
	}
	assert.Equal(t, int32(1), next.calls.Load())
}
