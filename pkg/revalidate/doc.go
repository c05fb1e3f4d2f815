// Package revalidate implements the stale-while-revalidate decision core
// of the output cache: the eligibility gate, the per-entry cache state, and
// the single-flight refresh election.
//
// Every stored response carries a CacheState: the global change version
// observed when the response was produced, the instant after which the
// entry is due for a background refresh, and the policy that applied at
// store time. On every later hit the external store asks the Coordinator
// to validate the entry before serving it. The Coordinator returns one of
// two decisions:
//
//   - ServeStale: keep serving the stored body (still fresh, or this
//     request lost the refresh election)
//   - TreatAsMiss: regenerate the response and store it under a fresh
//     CacheState
//
// # Single-flight election
//
// When an entry is stale (the change version moved) or due for refresh
// (past its refresh-after instant), concurrent validations race on an
// atomic exchange of the entry's in-flight version marker. Exactly one
// caller per distinct change version wins and is told to regenerate; all
// others keep receiving the stale body. This bounds regeneration to one
// in-flight refresh per version and avoids a thundering herd exactly when
// the underlying data just changed.
//
// If the data changes again while a refresh is in flight, the next
// validation observes a newer version and opens a new election. Concurrency
// is bounded per version, not globally.
//
// # Basic usage
//
//	versions := content.NewCounterSource(0)
//	coordinator := revalidate.NewCoordinator(versions, logger)
//
//	// At store time:
//	expiresAt, state, err := coordinator.Prepare(ctx, pol.Duration, scheduledExpiry, pol.RefreshLead, pol)
//
//	// On every later hit, before serving the cached body:
//	switch coordinator.Validate(ctx, state, isAuthenticated, r.Method, pol.Duration) {
//	case revalidate.ServeStale:
//		// serve the stored response
//	case revalidate.TreatAsMiss:
//		// regenerate and re-store
//	}
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - burstcache_validations_total{outcome} - Validation decisions by outcome
//   - burstcache_elections_total{result} - Refresh elections won/lost
//   - burstcache_prepared_total - Cache states constructed
package revalidate
