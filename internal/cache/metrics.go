package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

var (
	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_requests_total",
			Help: "Search cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	cacheCompressedWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_compressed_writes_total",
			Help: "Search cache writes stored gzip-compressed.",
		},
	)

	cacheStaleWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_stale_writes_total",
			Help: "Search cache writes dropped because a flush started after the page was computed.",
		},
	)
)
