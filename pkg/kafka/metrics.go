package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcomes recorded by consumerMessages.
const (
	outcomeReceived  = "received"
	outcomeProcessed = "processed"
	outcomeFailed    = "failed"
)

// Publish results recorded by producerMessages.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	consumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka",
			Subsystem: "consumer",
			Name:      "messages_total",
			Help:      "Kafka messages seen by consumers, by outcome.",
		},
		[]string{"topic", "consumer_group", "outcome"},
	)

	consumerHandleSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kafka",
			Subsystem: "consumer",
			Name:      "handle_duration_seconds",
			Help:      "Time spent in the message handler, retries included.",
			Buckets:   []float64{.005, .05, .25, 1, 5, 30, 120, 600},
		},
		[]string{"topic", "consumer_group"},
	)

	producerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka",
			Subsystem: "producer",
			Name:      "messages_total",
			Help:      "Kafka publish attempts, by result.",
		},
		[]string{"topic", "result"},
	)

	producerPublishSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kafka",
			Subsystem: "producer",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
