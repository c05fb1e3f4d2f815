// Package content defines the collaborators the revalidation core consumes
// from the content store: the global change-version signal and the
// repository metadata used at store time (scheduled unpublish, revision
// status).
package content

import (
	"context"
	"sync/atomic"
)

// VersionSource supplies the global change version: a monotonically
// increasing counter that is incremented whenever any tracked content
// changes. Implementations must be safe for concurrent use.
type VersionSource interface {
	// Current returns the latest observed change version.
	Current(ctx context.Context) (int64, error)
}

// CounterSource is an in-process VersionSource backed by an atomic counter.
// It is the single-node implementation and the test fake.
type CounterSource struct {
	version atomic.Int64
}

// NewCounterSource creates a CounterSource starting at the given version.
func NewCounterSource(initial int64) *CounterSource {
	s := &CounterSource{}
	s.version.Store(initial)
	return s
}

// Current returns the current change version. It never fails.
func (s *CounterSource) Current(_ context.Context) (int64, error) {
	return s.version.Load(), nil
}

// Increment bumps the change version and returns the new value.
// Call it whenever tracked content changes.
func (s *CounterSource) Increment() int64 {
	return s.version.Add(1)
}
