package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asdisarson/ss/pkg/logger"
)

// fakeReader serves queued messages, then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    atomic.Bool
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	if len(r.queue) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed.Store(true)
	return nil
}

func eventMessage(t *testing.T, eventType string, offset int64) kafka.Message {
	t.Helper()
	event, err := NewEvent(eventType, "catalog", "test", nil)
	require.NoError(t, err)
	raw, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: "catalog.refresh.requested", Value: raw, Offset: offset}
}

func runConsumer(t *testing.T, r *fakeReader, h Handler) {
	t.Helper()
	c := newConsumer(r, ConsumerConfig{Topic: "catalog.refresh.requested", GroupID: "g", RetryBackoff: time.Millisecond}, h, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain queue")
	}
	cancel()
	require.NoError(t, <-done)
	assert.True(t, r.closed.Load())
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	r := newFakeReader(eventMessage(t, "catalog.refresh_requested", 1), eventMessage(t, "catalog.refresh_requested", 2))

	var handled atomic.Int32
	runConsumer(t, r, func(ctx context.Context, e *Event) error {
		handled.Add(1)
		return nil
	})

	assert.Equal(t, int32(2), handled.Load())
	assert.Len(t, r.committed, 2)
}

func TestConsumer_RetriesThenSkips(t *testing.T) {
	r := newFakeReader(eventMessage(t, "catalog.refresh_requested", 7))

	var attempts atomic.Int32
	runConsumer(t, r, func(ctx context.Context, e *Event) error {
		attempts.Add(1)
		return errors.New("sync already running")
	})

	assert.Equal(t, int32(maxHandlerRetries), attempts.Load())
	require.Len(t, r.committed, 1)
	assert.Equal(t, int64(7), r.committed[0].Offset)
}

func TestConsumer_SkipsUndecodable(t *testing.T) {
	r := newFakeReader(kafka.Message{Value: []byte("not json"), Offset: 3})

	var called atomic.Bool
	runConsumer(t, r, func(ctx context.Context, e *Event) error {
		called.Store(true)
		return nil
	})

	assert.False(t, called.Load())
	assert.Len(t, r.committed, 1)
}
