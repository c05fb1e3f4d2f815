// Package outputcache wires the eligibility gate, the revalidation
// coordinator and the output-cache store into an http.Handler middleware.
//
// Request flow: resolve the policy for the path, run the eligibility
// gate, look the response up in the store (the store validates every hit
// before releasing it), and on a miss regenerate by invoking the wrapped
// handler, then store the captured response together with a freshly
// prepared cache state. Losers of the refresh election never reach the
// wrapped handler; they are served the stale body by the store.
package outputcache

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/episerver/burstcache/pkg/content"
	"github.com/episerver/burstcache/pkg/policy"
	"github.com/episerver/burstcache/pkg/revalidate"
	"github.com/episerver/burstcache/pkg/store"
	"github.com/rs/zerolog"
)

// StatusHeader reports what the cache did with a request.
const StatusHeader = "Burst-Cache-Status"

// Status header values.
const (
	StatusHit    = "hit"
	StatusMiss   = "miss"
	StatusBypass = "bypass"
)

// AuthFunc reports whether a request is authenticated. Authenticated
// requests never touch the output cache.
type AuthFunc func(*http.Request) bool

// ContentIDFunc derives the content identity of a request, used for the
// canonical-revision check, the scheduled-expiry clamp and dependency
// registration.
type ContentIDFunc func(*http.Request) string

// VaryCustomFunc resolves the value of a policy's custom vary token for a
// request (e.g. token "market" resolves to the visitor's market).
type VaryCustomFunc func(r *http.Request, token string) string

// Config holds the middleware configuration.
type Config struct {
	// Coordinator runs Prepare and the validation hook. Required.
	Coordinator *revalidate.Coordinator

	// Store holds the cached responses. Required.
	Store *store.Manager

	// Repository supplies content metadata at store time. Required.
	Repository content.Repository

	// Rules resolves the cache policy per request path. Required.
	Rules *policy.Rules

	// Auth decides whether a request is authenticated. Defaults to
	// treating requests with an Authorization header or a session cookie
	// as authenticated.
	Auth AuthFunc

	// ContentID derives content identity. Defaults to the request path.
	ContentID ContentIDFunc

	// VaryCustom resolves custom vary tokens. Defaults to empty.
	VaryCustom VaryCustomFunc

	// Logger is the middleware logger.
	Logger zerolog.Logger
}

// Middleware is the output-cache HTTP middleware.
type Middleware struct {
	coordinator *revalidate.Coordinator
	store       *store.Manager
	repository  content.Repository
	rules       *policy.Rules
	auth        AuthFunc
	contentID   ContentIDFunc
	varyCustom  VaryCustomFunc
	logger      zerolog.Logger
}

// New creates the output-cache middleware.
func New(cfg Config) (*Middleware, error) {
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if cfg.Rules == nil {
		return nil, fmt.Errorf("rules are required")
	}

	if cfg.Auth == nil {
		cfg.Auth = DefaultAuth
	}
	if cfg.ContentID == nil {
		cfg.ContentID = func(r *http.Request) string { return r.URL.Path }
	}
	if cfg.VaryCustom == nil {
		cfg.VaryCustom = func(*http.Request, string) string { return "" }
	}

	return &Middleware{
		coordinator: cfg.Coordinator,
		store:       cfg.Store,
		repository:  cfg.Repository,
		rules:       cfg.Rules,
		auth:        cfg.Auth,
		contentID:   cfg.ContentID,
		varyCustom:  cfg.VaryCustom,
		logger:      cfg.Logger,
	}, nil
}

// DefaultAuth treats requests carrying an Authorization header or a
// session cookie as authenticated.
func DefaultAuth(r *http.Request) bool {
	if r.Header.Get("Authorization") != "" {
		return true
	}
	if _, err := r.Cookie("session"); err == nil {
		return true
	}
	return false
}

// Handler wraps next with the output cache.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		pol := m.rules.Resolve(r.URL.Path)
		isAuthenticated := m.auth(r)

		if !pol.IsCacheable() || !revalidate.IsEligible(isAuthenticated, r.Method, pol.Duration) {
			requestsTotal.WithLabelValues(StatusBypass).Inc()
			w.Header().Set(StatusHeader, StatusBypass)
			next.ServeHTTP(w, r)
			return
		}

		key := store.NewKey(r, pol, m.varyCustom(r, pol.VaryByCustom))

		entry, err := m.store.Get(ctx, key, isAuthenticated, r.Method)
		if err == nil {
			requestsTotal.WithLabelValues(StatusHit).Inc()
			m.writeEntry(w, entry, pol, StatusHit)
			return
		}
		if !errors.Is(err, store.ErrCacheMiss) && !errors.Is(err, store.ErrInvalidEntry) {
			// The store itself failed; regenerate but skip re-storing.
			m.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Cache get error")
			requestsTotal.WithLabelValues(StatusBypass).Inc()
			w.Header().Set(StatusHeader, StatusBypass)
			next.ServeHTTP(w, r)
			return
		}

		// Miss, or this request won the refresh election: regenerate.
		recorder := newRecorder()
		next.ServeHTTP(recorder, r)

		m.storeResponse(r, pol, key, recorder)

		requestsTotal.WithLabelValues(StatusMiss).Inc()
		recorder.copyTo(w, StatusMiss)
	})
}

// storeResponse stores a regenerated response when it qualifies: a 200
// for the canonical revision of the content.
func (m *Middleware) storeResponse(r *http.Request, pol policy.Policy, key store.Key, recorder *responseRecorder) {
	ctx := r.Context()

	if recorder.status != http.StatusOK {
		storeSkipsTotal.WithLabelValues("status").Inc()
		return
	}

	contentID := m.contentID(r)

	canonical, err := m.repository.IsCanonicalRevision(ctx, contentID)
	if err != nil {
		m.logger.Warn().Err(err).Str("content_id", contentID).Msg("Revision check failed, not caching")
		storeSkipsTotal.WithLabelValues("revision_error").Inc()
		return
	}
	if !canonical {
		m.logger.Debug().Str("content_id", contentID).Msg("Skipping cache store for non-canonical revision")
		storeSkipsTotal.WithLabelValues("draft").Inc()
		return
	}

	scheduledExpiry, err := m.repository.ScheduledExpiry(ctx, contentID)
	if err != nil {
		m.logger.Warn().Err(err).Str("content_id", contentID).Msg("Scheduled expiry lookup failed, not caching")
		storeSkipsTotal.WithLabelValues("expiry_error").Inc()
		return
	}

	expiresAt, state, err := m.coordinator.Prepare(ctx, pol.Duration, scheduledExpiry, pol.RefreshLead, pol)
	if err != nil {
		m.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Prepare failed, not caching")
		storeSkipsTotal.WithLabelValues("prepare_error").Inc()
		return
	}

	entry := &store.Entry{
		Body:       recorder.body.Bytes(),
		StatusCode: recorder.status,
		Header:     recorder.header.Clone(),
		StoredAt:   time.Now(),
		ExpiresAt:  expiresAt,
	}

	if err := m.store.Set(ctx, key, entry, state, contentID); err != nil {
		m.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to store response")
		return
	}

	m.logger.Debug().
		Str("path", r.URL.Path).
		Time("expires_at", expiresAt).
		Msg("Stored regenerated response")
}

// writeEntry serves a cached entry.
func (m *Middleware) writeEntry(w http.ResponseWriter, entry *store.Entry, pol policy.Policy, status string) {
	for name, values := range entry.Header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set(StatusHeader, status)
	if pol.Cacheability == policy.CacheabilityServerAndClient {
		w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(entry.TTL().Seconds())))
	}
	w.WriteHeader(entry.StatusCode)
	if _, err := w.Write(entry.Body); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to write cached response")
	}
}
