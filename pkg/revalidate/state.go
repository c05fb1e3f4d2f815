package revalidate

import (
	"sync/atomic"
	"time"

	"github.com/episerver/burstcache/pkg/policy"
)

// NoRefreshInFlight is the sentinel value of the in-flight version marker
// meaning no refresh is currently running for the entry.
const NoRefreshInFlight int64 = -1

// CacheState is the validation token attached to a stored cache entry.
// One CacheState exists per entry, created when the entry is stored and
// discarded when the underlying store evicts or invalidates it.
//
// The in-flight version marker is the only mutable field and the single
// point of concurrency control for the entry; everything else is fixed at
// construction and safe to read without synchronization.
type CacheState struct {
	versionAtStore        int64
	versionBeingRefreshed atomic.Int64
	refreshAfter          time.Time
	effectiveConfig       policy.Policy
}

func newCacheState(versionAtStore int64, refreshAfter time.Time, cfg policy.Policy) *CacheState {
	s := &CacheState{
		versionAtStore:  versionAtStore,
		refreshAfter:    refreshAfter,
		effectiveConfig: cfg,
	}
	s.versionBeingRefreshed.Store(NoRefreshInFlight)
	return s
}

// VersionAtStore returns the global change version observed when the
// entry was produced.
func (s *CacheState) VersionAtStore() int64 {
	return s.versionAtStore
}

// RefreshAfter returns the instant after which the entry is due for a
// background refresh.
func (s *CacheState) RefreshAfter() time.Time {
	return s.refreshAfter
}

// Policy returns the cache policy that was in force when the entry was
// stored.
func (s *CacheState) Policy() policy.Policy {
	return s.effectiveConfig
}

// electRefresher atomically claims the refresh slot for the given change
// version, returning true if this caller won the election. The exchange
// guarantees exactly one winner per distinct version value: the first
// caller to swap the marker to a version it did not already hold wins,
// and every later caller for the same version loses until a newer version
// opens a new election.
func (s *CacheState) electRefresher(version int64) bool {
	return s.versionBeingRefreshed.Swap(version) != version
}

// refreshInFlight returns the version currently being refreshed, or
// NoRefreshInFlight.
func (s *CacheState) refreshInFlight() int64 {
	return s.versionBeingRefreshed.Load()
}
