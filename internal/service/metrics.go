package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Search latency by cache outcome.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"cache"},
	)

	catalogSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_total",
			Help: "Catalog sync attempts by outcome (success, failure, conflict).",
		},
		[]string{"outcome"},
	)

	catalogSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Duration of completed catalog syncs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	catalogProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_products",
			Help: "Number of products in the current catalog snapshot.",
		},
	)
)
