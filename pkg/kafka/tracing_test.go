package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeaderCarrier_SetGetKeys(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "existing", Value: []byte("v1")}}}
	c := NewHeaderCarrier(&msg)

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Equal(t, "", c.Get("missing"))

	c.Set("existing", "v2")
	c.Set("new", "v3")
	assert.Equal(t, "v2", c.Get("existing"))
	assert.ElementsMatch(t, []string{"existing", "new"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

func TestKafkaHeaderCarrier_PropagationRoundTrip(t *testing.T) {
	prop := propagation.TraceContext{}
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	var msg kafka.Message
	prop.Inject(ctx, NewHeaderCarrier(&msg))

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), NewHeaderCarrier(&msg)))
	assert.Equal(t, traceID, extracted.TraceID())
	assert.Equal(t, spanID, extracted.SpanID())
	assert.True(t, extracted.IsRemote())
}
