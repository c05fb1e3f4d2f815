package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/episerver/burstcache/pkg/revalidate"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates there is no servable entry for the key: the
	// entry is absent, invalid, or its validation decided the hit must be
	// treated as a miss.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Validator decides whether a stored response may still be served to the
// current request. revalidate.Coordinator implements it.
type Validator interface {
	Validate(ctx context.Context, state *revalidate.CacheState, isAuthenticated bool, method string, configuredDuration time.Duration) revalidate.Decision
}

// Manager is the output-cache store. It keeps response bytes in a
// Provider, binds each entry to its in-memory CacheState token, and runs
// the validation hook on every hit before the body is released.
type Manager struct {
	provider  Provider
	validator Validator
	states    sync.Map // key string -> *revalidate.CacheState
	logger    zerolog.Logger
}

// NewManager creates a store manager over the given provider. Every hit
// is passed through the validator before being served.
func NewManager(provider Provider, validator Validator, logger zerolog.Logger) *Manager {
	if provider == nil {
		panic("provider cannot be nil")
	}
	if validator == nil {
		panic("validator cannot be nil")
	}
	return &Manager{
		provider:  provider,
		validator: validator,
		logger:    logger,
	}
}

// Get retrieves the entry for the key and validates it against the
// current request. Returns ErrCacheMiss when there is nothing servable,
// including when this request won the refresh election and must
// regenerate.
func (m *Manager) Get(ctx context.Context, key Key, isAuthenticated bool, method string) (*Entry, error) {
	cacheKey := key.String()

	data, found, err := m.provider.Get(ctx, cacheKey)
	if err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("provider get: %w", err)
	}
	if !found {
		// The provider evicted or expired the entry; its token goes too.
		m.states.Delete(cacheKey)
		storeMisses.Inc()
		return nil, ErrCacheMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		m.logger.Warn().Err(err).Str("cache_key", cacheKey).Msg("Dropping undecodable cache entry")
		_ = m.provider.Delete(ctx, cacheKey)
		m.states.Delete(cacheKey)
		storeMisses.Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	state, _ := m.loadState(cacheKey)
	duration := time.Duration(0)
	if state != nil {
		duration = state.Policy().Duration
	}

	// A nil state reaches the validator as-is and comes back as a miss:
	// an entry without its validation token cannot be trusted.
	decision := m.validator.Validate(ctx, state, isAuthenticated, method, duration)
	if decision == revalidate.TreatAsMiss {
		storeMisses.Inc()
		m.logger.Debug().
			Str("cache_key", cacheKey).
			Str("decision", decision.String()).
			Msg("Hit rejected by validation")
		return nil, ErrCacheMiss
	}

	storeHits.WithLabelValues(m.provider.Name()).Inc()
	return &entry, nil
}

// Set stores an entry under the key with its validation token, and
// registers the content items the entry was built from. The entry's
// ExpiresAt is the hard expiration handed to the provider.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry, state *revalidate.CacheState, dependencies ...string) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if state == nil {
		return fmt.Errorf("cache state cannot be nil")
	}

	cacheKey := key.String()

	data, err := json.Marshal(entry)
	if err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.provider.Set(ctx, cacheKey, data, entry.ExpiresAt); err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("provider set: %w", err)
	}
	m.states.Store(cacheKey, state)

	for _, contentID := range dependencies {
		if err := m.provider.AddDependency(ctx, contentID, cacheKey); err != nil {
			storeErrors.WithLabelValues("set").Inc()
			return fmt.Errorf("register dependency %q: %w", contentID, err)
		}
	}

	m.logger.Debug().
		Str("cache_key", cacheKey).
		Time("expires_at", entry.ExpiresAt).
		Int("size_bytes", len(data)).
		Msg("Stored cache entry")

	return nil
}

// Delete removes the entry and its validation token.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	cacheKey := key.String()
	if err := m.provider.Delete(ctx, cacheKey); err != nil {
		storeErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("provider delete: %w", err)
	}
	m.states.Delete(cacheKey)
	return nil
}

// InvalidateDependency drops every entry that was built from the given
// content item.
func (m *Manager) InvalidateDependency(ctx context.Context, contentID string) error {
	keys, err := m.provider.DependentKeys(ctx, contentID)
	if err != nil {
		storeErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("dependent keys: %w", err)
	}

	for _, cacheKey := range keys {
		if err := m.provider.Delete(ctx, cacheKey); err != nil {
			storeErrors.WithLabelValues("invalidate").Inc()
			return fmt.Errorf("delete dependent entry %q: %w", cacheKey, err)
		}
		m.states.Delete(cacheKey)
		storeInvalidations.Inc()
	}

	if err := m.provider.ClearDependency(ctx, contentID); err != nil {
		storeErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("clear dependency: %w", err)
	}

	m.logger.Info().
		Str("content_id", contentID).
		Int("entries", len(keys)).
		Msg("Invalidated dependent cache entries")

	return nil
}

func (m *Manager) loadState(cacheKey string) (*revalidate.CacheState, bool) {
	value, ok := m.states.Load(cacheKey)
	if !ok {
		return nil, false
	}
	return value.(*revalidate.CacheState), true
}
