package revalidate

import (
	"context"
	"fmt"
	"time"

	"github.com/episerver/burstcache/pkg/content"
	"github.com/episerver/burstcache/pkg/policy"
	"github.com/rs/zerolog"
)

// Decision is the outcome of validating a stored cache entry.
type Decision int

const (
	// ServeStale tells the store to keep serving the stored body.
	ServeStale Decision = iota

	// TreatAsMiss tells the store to discard the hit: the caller must
	// regenerate the response and store it under a fresh CacheState.
	TreatAsMiss
)

// String returns the decision name for logging.
func (d Decision) String() string {
	switch d {
	case ServeStale:
		return "serve_stale"
	case TreatAsMiss:
		return "treat_as_miss"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Coordinator owns the cache-validity decision: it computes expiry and
// refresh instants when a response is stored, and runs the single-flight
// refresh election on every later hit.
type Coordinator struct {
	versions content.VersionSource
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCoordinator creates a Coordinator reading the global change version
// from the given source.
func NewCoordinator(versions content.VersionSource, logger zerolog.Logger) *Coordinator {
	if versions == nil {
		panic("version source cannot be nil")
	}
	return &Coordinator{
		versions: versions,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source (for testing).
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Prepare computes the hard expiry and the refresh instant for a response
// that is about to be stored, and constructs its CacheState.
//
// The expiry is the configured TTL clamped by the content's scheduled
// unpublish time (zero scheduledExpiry means none): stale content is never
// served past the moment it was meant to disappear. The refresh instant is
// the expiry minus refreshLead; a lead of at least the TTL disables the
// intermediate refresh window and the entry simply expires.
//
// The returned expiresAt is the hard expiration for the underlying store;
// the CacheState is attached to the entry as its validation token.
func (c *Coordinator) Prepare(ctx context.Context, ttl time.Duration, scheduledExpiry time.Time, refreshLead time.Duration, cfg policy.Policy) (time.Time, *CacheState, error) {
	now := c.now()

	expiresAt := now.Add(ttl)
	if !scheduledExpiry.IsZero() && scheduledExpiry.Before(expiresAt) {
		expiresAt = scheduledExpiry
	}

	refreshAfter := expiresAt
	if refreshLead < ttl {
		refreshAfter = expiresAt.Add(-refreshLead)
	}

	version, err := c.versions.Current(ctx)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("read change version: %w", err)
	}

	preparedTotal.Inc()
	c.logger.Debug().
		Int64("change_version", version).
		Time("expires_at", expiresAt).
		Time("refresh_after", refreshAfter).
		Msg("Prepared cache state")

	return expiresAt, newCacheState(version, refreshAfter, cfg), nil
}

// Validate decides, before a stored response is released to a client,
// whether the stored body may still be served or the hit must be treated
// as a miss. It is safe to call from any number of goroutines for the
// same CacheState.
//
// An entry that is both unchanged and within its fresh window is served
// without touching the atomic marker. Otherwise the single-flight election
// runs: exactly one caller per distinct change version is told to
// regenerate, everyone else keeps the stale body.
func (c *Coordinator) Validate(ctx context.Context, state *CacheState, isAuthenticated bool, method string, configuredDuration time.Duration) Decision {
	if state == nil {
		// A hit without a validation token cannot be trusted.
		validationsTotal.WithLabelValues(outcomeInvalidState).Inc()
		return TreatAsMiss
	}

	if !IsEligible(isAuthenticated, method, configuredDuration) {
		validationsTotal.WithLabelValues(outcomeIneligible).Inc()
		return TreatAsMiss
	}

	currentVersion, err := c.versions.Current(ctx)
	if err != nil {
		// Without a readable version signal the entry cannot be proven
		// stale. Keep serving it rather than stampede the origin.
		validationsTotal.WithLabelValues(outcomeVersionError).Inc()
		c.logger.Warn().Err(err).Msg("Change version unavailable, serving stored response")
		return ServeStale
	}

	if state.versionAtStore == currentVersion && !c.now().After(state.refreshAfter) {
		validationsTotal.WithLabelValues(outcomeFresh).Inc()
		return ServeStale
	}

	if state.electRefresher(currentVersion) {
		validationsTotal.WithLabelValues(outcomeElected).Inc()
		electionsTotal.WithLabelValues("won").Inc()
		c.logger.Debug().
			Int64("version_at_store", state.versionAtStore).
			Int64("change_version", currentVersion).
			Msg("Won refresh election")
		return TreatAsMiss
	}

	validationsTotal.WithLabelValues(outcomeLostElection).Inc()
	electionsTotal.WithLabelValues("lost").Inc()
	return ServeStale
}
