package content

import (
	"context"
	"sync"
	"time"
)

// Repository exposes the content metadata the cache coordinator needs at
// store time: the scheduled unpublish moment of an item, and whether the
// requested revision is the canonical/published one.
type Repository interface {
	// ScheduledExpiry returns the time at which the content item stops
	// being served, or the zero time if no unpublish is scheduled.
	ScheduledExpiry(ctx context.Context, contentID string) (time.Time, error)

	// IsCanonicalRevision reports whether the requested content is the
	// published revision. Work-in-progress revisions must never be cached.
	IsCanonicalRevision(ctx context.Context, contentID string) (bool, error)
}

// StaticRepository is a map-backed Repository for single-node setups and
// tests. Unknown content is canonical with no scheduled expiry.
type StaticRepository struct {
	mu       sync.RWMutex
	expiries map[string]time.Time
	drafts   map[string]bool
}

// NewStaticRepository creates an empty StaticRepository.
func NewStaticRepository() *StaticRepository {
	return &StaticRepository{
		expiries: make(map[string]time.Time),
		drafts:   make(map[string]bool),
	}
}

// SetScheduledExpiry records an unpublish time for a content item.
func (r *StaticRepository) SetScheduledExpiry(contentID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expiries[contentID] = at
}

// MarkDraft flags a content item as a work-in-progress revision.
func (r *StaticRepository) MarkDraft(contentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[contentID] = true
}

// MarkPublished clears the draft flag for a content item.
func (r *StaticRepository) MarkPublished(contentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, contentID)
}

// ScheduledExpiry returns the recorded unpublish time, or the zero time.
func (r *StaticRepository) ScheduledExpiry(_ context.Context, contentID string) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.expiries[contentID], nil
}

// IsCanonicalRevision reports whether the item is not flagged as a draft.
func (r *StaticRepository) IsCanonicalRevision(_ context.Context, contentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.drafts[contentID], nil
}
