package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeHits tracks validated cache hits by provider.
	storeHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burstcache_store_hits_total",
			Help: "Total number of validated output-cache hits",
		},
		[]string{"provider"}, // "memory", "redis"
	)

	// storeMisses tracks cache misses, including hits rejected by
	// validation.
	storeMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "burstcache_store_misses_total",
			Help: "Total number of output-cache misses",
		},
	)

	// storeErrors tracks provider operation errors.
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burstcache_store_errors_total",
			Help: "Total number of output-cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "invalidate"
	)

	// storeInvalidations tracks entries dropped by dependency
	// invalidation.
	storeInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "burstcache_store_invalidations_total",
			Help: "Total number of entries removed by dependency invalidation",
		},
	)
)
