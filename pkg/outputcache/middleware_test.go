package outputcache

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/episerver/burstcache/pkg/content"
	"github.com/episerver/burstcache/pkg/policy"
	"github.com/episerver/burstcache/pkg/revalidate"
	"github.com/episerver/burstcache/pkg/store"
	"github.com/rs/zerolog"
)

type testFixture struct {
	middleware *Middleware
	versions   *content.CounterSource
	repository *content.StaticRepository
	origin     *countingHandler
	handler    http.Handler
}

// countingHandler counts invocations of the wrapped handler so tests can
// assert whether a request reached the origin.
type countingHandler struct {
	calls  atomic.Int64
	status int
	body   string
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := h.calls.Add(1)
	w.Header().Set("Content-Type", "text/html")
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	fmt.Fprintf(w, "%s-%d", h.body, n)
}

func newTestFixture(t *testing.T, rules *policy.Rules) *testFixture {
	t.Helper()

	versions := content.NewCounterSource(1)
	coordinator := revalidate.NewCoordinator(versions, zerolog.Nop())
	manager := store.NewManager(store.NewMemoryProvider(), coordinator, zerolog.Nop())
	repository := content.NewStaticRepository()
	origin := &countingHandler{body: "page"}

	middleware, err := New(Config{
		Coordinator: coordinator,
		Store:       manager,
		Repository:  repository,
		Rules:       rules,
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testFixture{
		middleware: middleware,
		versions:   versions,
		repository: repository,
		origin:     origin,
		handler:    middleware.Handler(origin),
	}
}

func defaultRules() *policy.Rules {
	return policy.NewRules(policy.Default())
}

func doGet(handler http.Handler, path string, modify ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, fn := range modify {
		fn(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_New_Validation(t *testing.T) {
	versions := content.NewCounterSource(1)
	coordinator := revalidate.NewCoordinator(versions, zerolog.Nop())
	manager := store.NewManager(store.NewMemoryProvider(), coordinator, zerolog.Nop())
	repository := content.NewStaticRepository()
	rules := defaultRules()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing coordinator", Config{Store: manager, Repository: repository, Rules: rules}},
		{"missing store", Config{Coordinator: coordinator, Repository: repository, Rules: rules}},
		{"missing repository", Config{Coordinator: coordinator, Store: manager, Rules: rules}},
		{"missing rules", Config{Coordinator: coordinator, Store: manager, Repository: repository}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestMiddleware_MissThenHit(t *testing.T) {
	f := newTestFixture(t, defaultRules())

	first := doGet(f.handler, "/articles/42")
	if got := first.Header().Get(StatusHeader); got != StatusMiss {
		t.Errorf("first request status = %q, want %q", got, StatusMiss)
	}
	if first.Body.String() != "page-1" {
		t.Errorf("first body = %q, want %q", first.Body.String(), "page-1")
	}

	second := doGet(f.handler, "/articles/42")
	if got := second.Header().Get(StatusHeader); got != StatusHit {
		t.Errorf("second request status = %q, want %q", got, StatusHit)
	}
	if second.Body.String() != "page-1" {
		t.Errorf("second body = %q, want cached %q", second.Body.String(), "page-1")
	}
	if f.origin.calls.Load() != 1 {
		t.Errorf("origin calls = %d, want 1", f.origin.calls.Load())
	}
}

func TestMiddleware_BypassesAuthenticatedRequests(t *testing.T) {
	f := newTestFixture(t, defaultRules())

	rec := doGet(f.handler, "/articles/42", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer token")
	})
	if got := rec.Header().Get(StatusHeader); got != StatusBypass {
		t.Errorf("status = %q, want %q", got, StatusBypass)
	}

	// The bypassed response must not have been stored.
	rec = doGet(f.handler, "/articles/42", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer token")
	})
	if got := rec.Header().Get(StatusHeader); got != StatusBypass {
		t.Errorf("repeat status = %q, want %q", got, StatusBypass)
	}
	if f.origin.calls.Load() != 2 {
		t.Errorf("origin calls = %d, want 2", f.origin.calls.Load())
	}
}

func TestMiddleware_BypassesSessionCookie(t *testing.T) {
	f := newTestFixture(t, defaultRules())

	rec := doGet(f.handler, "/articles/42", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	})
	if got := rec.Header().Get(StatusHeader); got != StatusBypass {
		t.Errorf("status = %q, want %q", got, StatusBypass)
	}
}

func TestMiddleware_BypassesPost(t *testing.T) {
	f := newTestFixture(t, defaultRules())

	req := httptest.NewRequest(http.MethodPost, "/articles/42", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(StatusHeader); got != StatusBypass {
		t.Errorf("status = %q, want %q", got, StatusBypass)
	}
}

func TestMiddleware_BypassesUncacheablePolicy(t *testing.T) {
	rules := policy.NewRules(policy.Default(),
		policy.Rule{PathPrefix: "/private/", Policy: policy.Policy{Cacheability: policy.CacheabilityNone}},
	)
	f := newTestFixture(t, rules)

	rec := doGet(f.handler, "/private/dashboard")
	if got := rec.Header().Get(StatusHeader); got != StatusBypass {
		t.Errorf("status = %q, want %q", got, StatusBypass)
	}
}

func TestMiddleware_NonOKResponsesNotCached(t *testing.T) {
	f := newTestFixture(t, defaultRules())
	f.origin.status = http.StatusNotFound

	first := doGet(f.handler, "/missing")
	if first.Code != http.StatusNotFound {
		t.Errorf("first code = %d, want 404", first.Code)
	}

	doGet(f.handler, "/missing")
	if f.origin.calls.Load() != 2 {
		t.Errorf("origin calls = %d, want 2 (404 must not be cached)", f.origin.calls.Load())
	}
}

func TestMiddleware_DraftRevisionsNotCached(t *testing.T) {
	f := newTestFixture(t, defaultRules())
	f.repository.MarkDraft("/articles/42")

	doGet(f.handler, "/articles/42")
	doGet(f.handler, "/articles/42")

	if f.origin.calls.Load() != 2 {
		t.Errorf("origin calls = %d, want 2 (draft must not be cached)", f.origin.calls.Load())
	}
}

func TestMiddleware_VersionChangeElectsSingleRefresher(t *testing.T) {
	f := newTestFixture(t, defaultRules())

	// Seed the cache.
	doGet(f.handler, "/articles/42")
	if f.origin.calls.Load() != 1 {
		t.Fatalf("origin calls = %d, want 1 after seeding", f.origin.calls.Load())
	}

	// Content changes somewhere in the system.
	f.versions.Increment()

	const concurrency = 16
	var wg sync.WaitGroup
	var misses atomic.Int64

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			rec := doGet(f.handler, "/articles/42")
			if rec.Header().Get(StatusHeader) == StatusMiss {
				misses.Add(1)
			}
		}()
	}
	wg.Wait()

	if misses.Load() != 1 {
		t.Errorf("regenerating requests = %d, want exactly 1", misses.Load())
	}
	if f.origin.calls.Load() != 2 {
		t.Errorf("origin calls = %d, want 2", f.origin.calls.Load())
	}
}

func TestMiddleware_StaleServedAfterRefresh(t *testing.T) {
	f := newTestFixture(t, defaultRules())

	doGet(f.handler, "/articles/42")
	f.versions.Increment()

	// The winner regenerates and re-stores under the new version.
	rec := doGet(f.handler, "/articles/42")
	if got := rec.Header().Get(StatusHeader); got != StatusMiss {
		t.Fatalf("winner status = %q, want %q", got, StatusMiss)
	}
	if rec.Body.String() != "page-2" {
		t.Errorf("winner body = %q, want regenerated %q", rec.Body.String(), "page-2")
	}

	// Subsequent requests hit the refreshed entry.
	rec = doGet(f.handler, "/articles/42")
	if got := rec.Header().Get(StatusHeader); got != StatusHit {
		t.Errorf("follow-up status = %q, want %q", got, StatusHit)
	}
	if rec.Body.String() != "page-2" {
		t.Errorf("follow-up body = %q, want %q", rec.Body.String(), "page-2")
	}
}

func TestMiddleware_VaryByParamsSplitsEntries(t *testing.T) {
	rules := policy.NewRules(policy.Policy{
		Duration:     time.Minute,
		RefreshLead:  10 * time.Second,
		VaryByParams: []string{"page"},
		Cacheability: policy.CacheabilityServer,
	})
	f := newTestFixture(t, rules)

	first := doGet(f.handler, "/list?page=1")
	second := doGet(f.handler, "/list?page=2")
	if first.Body.String() == second.Body.String() {
		t.Error("distinct page parameters must produce distinct entries")
	}

	again := doGet(f.handler, "/list?page=1")
	if got := again.Header().Get(StatusHeader); got != StatusHit {
		t.Errorf("repeat page=1 status = %q, want %q", got, StatusHit)
	}
	if again.Body.String() != first.Body.String() {
		t.Errorf("repeat page=1 body = %q, want %q", again.Body.String(), first.Body.String())
	}
}

func TestMiddleware_ClientCacheabilitySetsCacheControl(t *testing.T) {
	rules := policy.NewRules(policy.Policy{
		Duration:     time.Minute,
		Cacheability: policy.CacheabilityServerAndClient,
	})
	f := newTestFixture(t, rules)

	doGet(f.handler, "/articles/42")
	rec := doGet(f.handler, "/articles/42")

	if got := rec.Header().Get("Cache-Control"); got == "" {
		t.Error("expected Cache-Control header on a hit with client cacheability")
	}
}

func TestMiddleware_PreservesOriginHeaders(t *testing.T) {
	f := newTestFixture(t, defaultRules())

	doGet(f.handler, "/articles/42")
	rec := doGet(f.handler, "/articles/42")

	if got := rec.Header().Get("Content-Type"); got != "text/html" {
		t.Errorf("Content-Type = %q, want %q", got, "text/html")
	}
}

func TestMiddleware_CustomVaryFunc(t *testing.T) {
	rules := policy.NewRules(policy.Policy{
		Duration:     time.Minute,
		VaryByCustom: "market",
		Cacheability: policy.CacheabilityServer,
	})

	versions := content.NewCounterSource(1)
	coordinator := revalidate.NewCoordinator(versions, zerolog.Nop())
	manager := store.NewManager(store.NewMemoryProvider(), coordinator, zerolog.Nop())
	origin := &countingHandler{body: "page"}

	middleware, err := New(Config{
		Coordinator: coordinator,
		Store:       manager,
		Repository:  content.NewStaticRepository(),
		Rules:       rules,
		VaryCustom: func(r *http.Request, token string) string {
			return r.Header.Get("X-Market")
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	handler := middleware.Handler(origin)

	us := doGet(handler, "/products", func(r *http.Request) { r.Header.Set("X-Market", "us") })
	de := doGet(handler, "/products", func(r *http.Request) { r.Header.Set("X-Market", "de") })
	if us.Body.String() == de.Body.String() {
		t.Error("distinct markets must produce distinct entries")
	}

	usAgain := doGet(handler, "/products", func(r *http.Request) { r.Header.Set("X-Market", "us") })
	if got := usAgain.Header().Get(StatusHeader); got != StatusHit {
		t.Errorf("repeat us status = %q, want %q", got, StatusHit)
	}
}
