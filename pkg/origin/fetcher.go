// Package origin fetches responses from the upstream application that the
// output cache sits in front of. Failed fetches are classified and
// retried with exponential backoff; client errors are passed through
// untouched.
package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for origin fetches.
var (
	originFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burstcache_origin_fetches_total",
		Help: "Total origin fetches by status",
	}, []string{"status"})

	originFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "burstcache_origin_fetch_duration_seconds",
		Help:    "Origin fetch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"status"})
)

// Fetcher performs HTTP requests against the origin.
type Fetcher struct {
	httpClient *http.Client
	baseURL    *url.URL
	retry      RetryConfig
	logger     zerolog.Logger
}

// NewFetcher creates a fetcher for the given origin base URL.
func NewFetcher(baseURL string) (*Fetcher, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("origin url %q must be absolute", baseURL)
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: parsed,
		retry:   DefaultRetryConfig(),
		logger:  log.With().Str("component", "origin").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// SetRetryConfig overrides the retry configuration.
func (f *Fetcher) SetRetryConfig(config RetryConfig) {
	f.retry = config
}

// Fetch requests the given path (with query) from the origin, forwarding
// the supplied request headers. Server and network failures are retried
// with backoff; the final response is returned for any status the origin
// insists on.
func (f *Fetcher) Fetch(ctx context.Context, pathAndQuery string, header http.Header) (*http.Response, error) {
	target := *f.baseURL
	if i := strings.IndexByte(pathAndQuery, '?'); i >= 0 {
		target.Path = pathAndQuery[:i]
		target.RawQuery = pathAndQuery[i+1:]
	} else {
		target.Path = pathAndQuery
	}

	start := time.Now()
	var resp *http.Response

	err := retryWithBackoff(ctx, f.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		for name, values := range header {
			for _, value := range values {
				req.Header.Add(name, value)
			}
		}

		resp, err = f.httpClient.Do(req)
		if err != nil {
			return &FetchError{ErrorClass: ErrorClassNetwork, Message: "origin unreachable", Err: err}
		}

		if resp.StatusCode >= 500 {
			fetchErr := &FetchError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassServer,
				Message:    resp.Status,
			}
			// Drain so the connection can be reused across attempts.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return fetchErr
		}

		return nil
	}, classifyFetchError)

	if err != nil {
		originFetchesTotal.WithLabelValues("error").Inc()
		originFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	status := fmt.Sprintf("%d", resp.StatusCode)
	originFetchesTotal.WithLabelValues(status).Inc()
	originFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	f.logger.Debug().
		Str("path", pathAndQuery).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Origin fetch complete")

	return resp, nil
}

// Handler returns an http.Handler that regenerates responses by fetching
// them from the origin. It is the innermost handler the caching
// middleware wraps when running as a proxy.
func (f *Fetcher) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := f.Fetch(r.Context(), r.URL.RequestURI(), r.Header)
		if err != nil {
			f.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Origin fetch failed")
			http.Error(w, "origin fetch failed", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for name, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(name, value)
			}
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			f.logger.Warn().Err(err).Msg("Failed to write origin response")
		}
	})
}

// classifyFetchError extracts the error class from a fetch error,
// defaulting to network for anything unstructured.
func classifyFetchError(err error) ErrorClass {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.ErrorClass
	}
	return ErrorClassNetwork
}
