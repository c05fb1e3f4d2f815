package store

import (
	"context"
	"sync"
	"time"
)

// Provider is the byte-level backend of the output cache. It stores opaque
// values under string keys with a hard expiration, and maintains the
// dependency index used for invalidation.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Get returns the stored value and whether it was found. Expired
	// values read as not found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a hard expiration.
	Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error

	// Delete removes a stored value.
	Delete(ctx context.Context, key string) error

	// AddDependency records that the entry under key was built from the
	// given content item.
	AddDependency(ctx context.Context, contentID, key string) error

	// DependentKeys returns the keys of all entries built from the given
	// content item.
	DependentKeys(ctx context.Context, contentID string) ([]string, error)

	// ClearDependency drops the dependency index for a content item.
	ClearDependency(ctx context.Context, contentID string) error
}

// MemoryProvider is an in-process Provider backed by maps.
type MemoryProvider struct {
	mu      sync.RWMutex
	values  map[string]memoryValue
	depends map[string]map[string]struct{}
}

type memoryValue struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		values:  make(map[string]memoryValue),
		depends: make(map[string]map[string]struct{}),
	}
}

// Name identifies the provider.
func (p *MemoryProvider) Name() string { return "memory" }

// Get returns the stored value. An expired value is purged and reads as
// not found.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	value, ok := p.values[key]
	p.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(value.expiresAt) {
		p.mu.Lock()
		delete(p.values, key)
		p.mu.Unlock()
		return nil, false, nil
	}
	return value.data, true, nil
}

// Set stores a value with a hard expiration.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = memoryValue{data: value, expiresAt: expiresAt}
	return nil
}

// Delete removes a stored value.
func (p *MemoryProvider) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
	return nil
}

// AddDependency records a content dependency for a key.
func (p *MemoryProvider) AddDependency(_ context.Context, contentID, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys, ok := p.depends[contentID]
	if !ok {
		keys = make(map[string]struct{})
		p.depends[contentID] = keys
	}
	keys[key] = struct{}{}
	return nil
}

// DependentKeys returns the keys depending on a content item.
func (p *MemoryProvider) DependentKeys(_ context.Context, contentID string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.depends[contentID]))
	for key := range p.depends[contentID] {
		keys = append(keys, key)
	}
	return keys, nil
}

// ClearDependency drops the dependency index for a content item.
func (p *MemoryProvider) ClearDependency(_ context.Context, contentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.depends, contentID)
	return nil
}
