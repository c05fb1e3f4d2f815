// Package store implements the output-cache store: cached responses keyed
// by request identity, held in a pluggable byte-level provider (memory or
// Redis), with every hit validated by the revalidation coordinator before
// the body is released.
//
// The store binds each entry to an in-memory revalidate.CacheState token.
// The token never leaves the process; an entry found in the provider
// without a matching token is treated as a miss, failing safe toward
// regeneration.
//
// # Basic Usage
//
//	provider := store.NewMemoryProvider()
//	manager := store.NewManager(provider, coordinator, logger)
//
//	key := store.NewKey(r, pol, varyToken)
//
//	entry, err := manager.Get(ctx, key, isAuthenticated, r.Method)
//	if err == store.ErrCacheMiss {
//		// regenerate, then:
//		// expiresAt, state, _ := coordinator.Prepare(...)
//		// manager.Set(ctx, key, entry, state, contentID)
//	}
//
// # Dependency invalidation
//
// Set registers the content items an entry depends on. When an item
// changes, InvalidateDependency drops every entry that was built from it.
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - burstcache_store_hits_total{provider} - Validated cache hits
//   - burstcache_store_misses_total - Cache misses (including rejected hits)
//   - burstcache_store_errors_total{operation} - Provider operation errors
//   - burstcache_store_invalidations_total - Entries dropped by dependency
package store
