// burst-proxy is a caching reverse proxy: it sits in front of an origin
// server, caches rendered GET responses per the configured rules, and
// serves stale content while a single elected request refreshes an entry
// after content changes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/episerver/burstcache/pkg/content"
	"github.com/episerver/burstcache/pkg/logging"
	"github.com/episerver/burstcache/pkg/origin"
	"github.com/episerver/burstcache/pkg/outputcache"
	"github.com/episerver/burstcache/pkg/policy"
	"github.com/episerver/burstcache/pkg/prewarm"
	"github.com/episerver/burstcache/pkg/revalidate"
	"github.com/episerver/burstcache/pkg/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "false") == "true",
		Output: os.Stderr,
	})

	originURL := getEnv("ORIGIN_URL", "")
	if originURL == "" {
		logger.Fatal().Msg("ORIGIN_URL is required")
	}
	port := getEnv("PORT", "8080")
	redisURL := getEnv("REDIS_URL", "")
	rulesFile := getEnv("RULES_FILE", "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cache rules
	rules := policy.NewRules(policy.Default())
	if rulesFile != "" {
		loaded, err := policy.LoadRules(rulesFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", rulesFile).Msg("Failed to load cache rules")
		}
		rules = loaded
		logger.Info().Str("file", rulesFile).Msg("Loaded cache rules")
	}

	// Storage and change-version source: Redis when configured, otherwise
	// in-process (single instance only).
	var provider store.Provider
	var versions content.VersionSource
	var bump func(context.Context) error

	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis", redisURL).Msg("Connected to Redis")

		provider = store.NewRedisProvider(redisClient)
		redisSource := content.NewRedisSource(redisClient, logging.NewLogger("content"))
		versions = redisSource
		bump = func(ctx context.Context) error {
			_, err := redisSource.Bump(ctx)
			return err
		}
	} else {
		logger.Warn().Msg("REDIS_URL not set, using in-memory cache (single instance only)")
		provider = store.NewMemoryProvider()
		counter := content.NewCounterSource(1)
		versions = counter
		bump = func(context.Context) error {
			counter.Increment()
			return nil
		}
	}

	coordinator := revalidate.NewCoordinator(versions, logging.NewLogger("revalidate"))
	manager := store.NewManager(provider, coordinator, logging.NewLogger("store"))
	repository := content.NewStaticRepository()

	fetcher, err := origin.NewFetcher(originURL)
	if err != nil {
		logger.Fatal().Err(err).Str("origin", originURL).Msg("Invalid origin URL")
	}

	cache, err := outputcache.New(outputcache.Config{
		Coordinator: coordinator,
		Store:       manager,
		Repository:  repository,
		Rules:       rules,
		Logger:      logging.NewLogger("outputcache"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create output cache")
	}

	cached := cache.Handler(fetcher.Handler())

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Post("/admin/invalidate/*", invalidateHandler(manager, bump, logger))
	router.Handle("/*", cached)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("origin", originURL).Msg("Starting burst-proxy")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// Optional prewarm after startup.
	if paths := splitPaths(getEnv("PREWARM_PATHS", "")); len(paths) > 0 {
		group.Go(func() error {
			warmer := prewarm.NewWarmer(cached, prewarm.DefaultConfig(), logging.NewLogger("prewarm"))
			if _, err := warmer.Warm(ctx, paths); err != nil {
				logger.Warn().Err(err).Msg("Prewarm failed")
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Shutdown complete")
}

// invalidateHandler removes every cached entry depending on the content
// item and publishes a change-version bump so other instances revalidate.
func invalidateHandler(manager *store.Manager, bump func(context.Context) error, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contentID := "/" + chi.URLParam(r, "*")

		if err := manager.InvalidateDependency(r.Context(), contentID); err != nil {
			logger.Error().Err(err).Str("content_id", contentID).Msg("Invalidation failed")
			http.Error(w, "invalidation failed", http.StatusInternalServerError)
			return
		}

		if err := bump(r.Context()); err != nil {
			logger.Error().Err(err).Msg("Change version bump failed")
			http.Error(w, "version bump failed", http.StatusInternalServerError)
			return
		}

		logger.Info().Str("content_id", contentID).Msg("Content invalidated")
		w.WriteHeader(http.StatusNoContent)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitPaths(value string) []string {
	if value == "" {
		return nil
	}
	var paths []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
