package store

import (
	"net/http"
	"time"
)

// Entry represents a cached response body and metadata.
type Entry struct {
	// Body is the response body.
	Body []byte `json:"body"`

	// StatusCode is the HTTP status code of the cached response.
	StatusCode int `json:"status_code"`

	// Header holds the response headers captured at store time.
	Header http.Header `json:"header"`

	// StoredAt is when the response was produced and stored.
	StoredAt time.Time `json:"stored_at"`

	// ExpiresAt is the hard expiration computed at store time: the
	// configured TTL clamped by the content's scheduled unpublish moment.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the entry has passed its hard expiration.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TTL returns the time until the hard expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
