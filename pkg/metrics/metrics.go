// Package metrics provides the centralized Prometheus metrics registry for
// the output cache. All metrics are defined in their respective packages
// (revalidate, store, origin, outputcache, content, prewarm) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the output cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/outputcache):
//   - burstcache_requests_total{status} (Counter): Requests through the middleware by cache status (hit, miss, bypass)
//   - burstcache_store_skips_total{reason} (Counter): Regenerated responses not stored, by reason
//
// Validation Metrics (pkg/revalidate):
//   - burstcache_validations_total{outcome} (Counter): Validation hook outcomes (fresh, elected, lost_election, ineligible, invalid_state, version_error)
//   - burstcache_elections_total{result} (Counter): Refresh election results (won, lost)
//   - burstcache_prepared_total (Counter): Cache states prepared at store time
//
// Store Metrics (pkg/store):
//   - burstcache_store_hits_total{provider} (Counter): Store hits by provider
//   - burstcache_store_misses_total (Counter): Store misses
//   - burstcache_store_errors_total{operation} (Counter): Store operation errors
//   - burstcache_store_invalidations_total (Counter): Entries removed by dependency invalidation
//
// Change Version Metrics (pkg/content):
//   - burstcache_change_version (Gauge): Last change version observed
//   - burstcache_change_version_bumps_total (Counter): Version bumps published
//   - burstcache_change_version_errors_total (Counter): Version source read errors
//
// Origin Metrics (pkg/origin):
//   - burstcache_origin_fetches_total{status} (Counter): Origin fetches by HTTP status
//   - burstcache_origin_fetch_duration_seconds (Histogram): Origin fetch duration
//   - burstcache_origin_retries_total{error_class} (Counter): Retry attempts by error class
//   - burstcache_origin_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - burstcache_origin_retry_exhausted_total{error_class} (Counter): Fetches that exhausted max retries
//
// Prewarm Metrics (pkg/prewarm):
//   - burstcache_prewarm_paths_total{result} (Counter): Paths processed by the prewarmer
//   - burstcache_prewarm_duration_seconds (Histogram): Wall time of prewarm runs
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(burstcache_requests_total{status="hit"}[5m])) /
//   sum(rate(burstcache_requests_total{status=~"hit|miss"}[5m]))
//
//   # Stale Serves Per Refresh (losers serving stale per election)
//   rate(burstcache_elections_total{result="lost"}[5m]) /
//   rate(burstcache_elections_total{result="won"}[5m])
//
//   # Origin Error Rate
//   rate(burstcache_origin_fetches_total{status=~"5.."}[5m])
//
//   # P95 Origin Latency
//   histogram_quantile(0.95, rate(burstcache_origin_fetch_duration_seconds_bucket[5m]))
