package outputcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burstcache_requests_total",
		Help: "Total requests passing through the output-cache middleware by cache status",
	}, []string{"status"})

	storeSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burstcache_store_skips_total",
		Help: "Regenerated responses not stored, by reason",
	}, []string{"reason"})
)
