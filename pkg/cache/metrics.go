package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by freshness ("fresh", "stale")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_cache_hits_total",
			Help: "Total number of SWAPI cache hits",
		},
		[]string{"freshness"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapi_cache_misses_total",
			Help: "Total number of SWAPI cache misses",
		},
	)

	// NotModifiedResponses tracks successful revalidations
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapi_304_responses_total",
			Help: "Total number of SWAPI 304 Not Modified responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
