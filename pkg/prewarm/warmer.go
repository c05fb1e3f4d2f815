// Package prewarm populates the output cache ahead of traffic by driving
// synthetic requests through the cache handler in parallel.
package prewarm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	warmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burstcache_prewarm_paths_total",
		Help: "Total paths processed by the prewarmer by result",
	}, []string{"result"})

	warmDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "burstcache_prewarm_duration_seconds",
		Help:    "Wall time of complete prewarm runs",
		Buckets: prometheus.DefBuckets,
	})
)

// Config holds prewarmer configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel warm requests.
	MaxConcurrency int
	// Timeout per warmed path.
	Timeout time.Duration
}

// DefaultConfig returns safe prewarm defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

// Warmer drives synthetic GET requests through a cache handler so the
// first real visitor finds the entries already stored.
type Warmer struct {
	handler http.Handler
	config  Config
	logger  zerolog.Logger
}

// NewWarmer creates a prewarmer over the given handler. The handler is
// expected to be the output-cache middleware chain.
func NewWarmer(handler http.Handler, config Config, logger zerolog.Logger) *Warmer {
	if handler == nil {
		panic("handler cannot be nil")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 8
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Warmer{
		handler: handler,
		config:  config,
		logger:  logger,
	}
}

// Result summarizes a prewarm run.
type Result struct {
	Warmed int
	Failed int
}

// Warm requests every path once. Individual failures do not stop the
// run; the first failure is reported alongside the partial result.
func (w *Warmer) Warm(ctx context.Context, paths []string) (Result, error) {
	start := time.Now()

	w.logger.Info().
		Int("paths", len(paths)).
		Int("concurrency", w.config.MaxConcurrency).
		Msg("Starting cache prewarm")

	var warmed, failed atomic.Int64

	var errMu sync.Mutex
	var firstErr error

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(w.config.MaxConcurrency)

	for _, path := range paths {
		group.Go(func() error {
			if err := w.warmPath(ctx, path); err != nil {
				failed.Add(1)
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				w.logger.Warn().Err(err).Str("path", path).Msg("Prewarm request failed")
				warmedTotal.WithLabelValues("error").Inc()
				return nil
			}
			n := warmed.Add(1)
			warmedTotal.WithLabelValues("ok").Inc()
			if n%50 == 0 {
				w.logger.Info().
					Int64("warmed", n).
					Int("total", len(paths)).
					Msg("Prewarm progress")
			}
			return nil
		})
	}

	// Workers swallow per-path errors, so Wait only reports context
	// cancellation.
	waitErr := group.Wait()

	result := Result{
		Warmed: int(warmed.Load()),
		Failed: int(failed.Load()),
	}
	warmDuration.Observe(time.Since(start).Seconds())

	w.logger.Info().
		Int("warmed", result.Warmed).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("Prewarm complete")

	if waitErr != nil {
		return result, fmt.Errorf("prewarm cancelled: %w", waitErr)
	}
	if firstErr != nil && result.Warmed == 0 {
		return result, fmt.Errorf("prewarm failed for all %d paths: %w", len(paths), firstErr)
	}
	return result, nil
}

// warmPath issues one synthetic request and discards the body.
func (w *Warmer) warmPath(ctx context.Context, path string) error {
	reqCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()

	w.handler.ServeHTTP(rec, req)

	if _, err := io.Copy(io.Discard, rec.Body); err != nil {
		return fmt.Errorf("drain response for %s: %w", path, err)
	}
	if rec.Code != http.StatusOK {
		return fmt.Errorf("warm %s: unexpected status %d", path, rec.Code)
	}
	return nil
}
