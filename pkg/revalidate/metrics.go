package revalidate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation outcome labels.
const (
	outcomeFresh        = "fresh"
	outcomeElected      = "elected"
	outcomeLostElection = "lost_election"
	outcomeIneligible   = "ineligible"
	outcomeInvalidState = "invalid_state"
	outcomeVersionError = "version_error"
)

var (
	// validationsTotal tracks validation decisions by outcome.
	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burstcache_validations_total",
			Help: "Total number of cache entry validations by outcome",
		},
		[]string{"outcome"},
	)

	// electionsTotal tracks refresh elections by result.
	electionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burstcache_elections_total",
			Help: "Total number of refresh elections by result",
		},
		[]string{"result"}, // "won", "lost"
	)

	// preparedTotal tracks constructed cache states.
	preparedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "burstcache_prepared_total",
			Help: "Total number of cache states prepared at store time",
		},
	)
)
