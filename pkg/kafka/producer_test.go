package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Asdisarson/ss/pkg/logger"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	w := &fakeWriter{}
	p := newProducer(w, []string{"localhost:9092"}, logger.Discard())

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	event, err := NewEvent("catalog.synced", "catalog", "catalog-search", syncedData{Products: 3})
	require.NoError(t, err)
	event.WithCorrelationID("corr-9")

	topic := Topic("sync", "completed")
	before := testutil.ToFloat64(producerMessages.WithLabelValues(topic, resultOK))
	require.NoError(t, p.Publish(ctx, topic, event))
	assert.Equal(t, before+1, testutil.ToFloat64(producerMessages.WithLabelValues(topic, resultOK)))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, []byte("catalog"), msg.Key)

	carrier := NewHeaderCarrier(&msg)
	assert.Equal(t, "catalog.synced", carrier.Get("event_type"))
	assert.Equal(t, "corr-9", carrier.Get("correlation_id"))
	assert.Contains(t, carrier.Get("traceparent"), traceID.String())

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, nil, logger.Discard())

	event, err := NewEvent("catalog.synced", "catalog", "catalog-search", nil)
	require.NoError(t, err)

	topic := Topic("sync", "failing")
	err = p.Publish(context.Background(), topic, event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, float64(1), testutil.ToFloat64(producerMessages.WithLabelValues(topic, resultError)))
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	assert.Error(t, PingBrokers(context.Background(), nil))
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"a:9092", "b:9092"})
	assert.Len(t, cfg.Brokers, 2)
	assert.Equal(t, 1, cfg.BatchSize)
}
