// Package metrics exposes the Prometheus registry shared by the browser.
// Metrics are defined in their own packages (client, cache, ratelimit, view, web)
// through promauto and land in the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the browser.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the gathered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Quota Metrics (pkg/ratelimit):
//   - artic_quota_remaining (Gauge): Requests left in the catalog rate limit window
//   - artic_quota_blocks_total (Counter): Requests refused because the quota was spent
//
// Cache Metrics (pkg/cache):
//   - artic_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - artic_cache_misses_total (Counter): Cache misses
//   - artic_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - artic_304_responses_total (Counter): 304 Not Modified responses
//   - artic_conditional_requests_total (Counter): Conditional requests sent
//   - artic_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - artic_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - artic_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - artic_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, payload)
//   - artic_rejected_items_total (Counter): Listing items dropped by the decoder
//
// View Metrics (internal/view):
//   - artic_view_fetches_total{outcome} (Counter): Page fetches by outcome (applied, stale, failed)
//   - artic_view_invalid_rows_total (Counter): Rejected row count inputs
//
// Web Metrics (internal/web):
//   - artic_web_sessions (Gauge): Live viewer sessions
//
// Example Prometheus Queries:
//
//   # Cache revalidation rate
//   rate(artic_304_responses_total[5m]) / rate(artic_conditional_requests_total[5m])
//
//   # Share of fetches overtaken by a newer one
//   rate(artic_view_fetches_total{outcome="stale"}[5m]) / rate(artic_view_fetches_total[5m])
//
//   # P95 catalog latency
//   histogram_quantile(0.95, rate(artic_request_duration_seconds_bucket[5m]))
