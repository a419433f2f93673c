// Package metrics exposes the Prometheus registry used by swapi-search.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, browser) via promauto to avoid circular dependencies; this
// package serves them and documents the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry. All metrics are registered
// into it via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Session Metrics (pkg/browser):
//   - swapi_session_fetches_total{kind} (Counter): Fetches issued by kind (search, page)
//   - swapi_session_stale_discards_total (Counter): Results dropped because a newer fetch was issued
//   - swapi_session_load_more_total{outcome} (Counter): Load-more triggers (allowed, busy, exhausted, no_data)
//
// Quota Metrics (pkg/ratelimit):
//   - swapi_quota_remaining (Gauge): Requests left in the current quota window
//   - swapi_quota_blocks_total (Counter): Requests refused by quota or Retry-After
//   - swapi_quota_throttles_total (Counter): Requests delayed in the warning band
//
// Cache Metrics (pkg/cache):
//   - swapi_cache_hits_total{freshness} (Counter): Cache hits (fresh, stale)
//   - swapi_cache_misses_total (Counter): Cache misses
//   - swapi_304_responses_total (Counter): 304 Not Modified responses
//   - swapi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - swapi_requests_total{status} (Counter): Requests by HTTP status, plus cache, network_error, quota_refused
//   - swapi_request_duration_seconds (Histogram): Page fetch duration
//   - swapi_errors_total{class} (Counter): Errors by class
//   - swapi_fetch_unavailable_total{error_class} (Counter): Fetches collapsed to an empty page
//
// Retry Metrics (pkg/client):
//   - swapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - swapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - swapi_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(swapi_cache_hits_total[5m])) /
//   (sum(rate(swapi_cache_hits_total[5m])) + sum(rate(swapi_cache_misses_total[5m])))
//
//   # Share of searches answered with an unavailable page
//   sum(rate(swapi_fetch_unavailable_total[5m])) / sum(rate(swapi_session_fetches_total[5m]))
//
//   # Stale responses per search
//   rate(swapi_session_stale_discards_total[5m]) / rate(swapi_session_fetches_total{kind="search"}[5m])
//
//   # P95 Page Fetch Latency
//   histogram_quantile(0.95, rate(swapi_request_duration_seconds_bucket[5m]))
