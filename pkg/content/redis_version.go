package content

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key for the process-shared change version.
const RedisKeyChangeVersion = "burstcache:change_version"

// Prometheus metrics for the shared version signal.
var (
	changeVersionGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "burstcache_change_version",
		Help: "Last observed global content change version",
	})

	changeVersionBumpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burstcache_change_version_bumps_total",
		Help: "Total number of change version increments",
	})

	changeVersionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burstcache_change_version_errors_total",
		Help: "Total number of errors reading the shared change version",
	})
)

// RedisSource is a VersionSource shared across all instances via Redis.
// The counter lives under RedisKeyChangeVersion and is advanced with Bump.
//
// RedisSource remembers the last version it observed. When Redis is
// unreachable, Current returns that last-known value together with the
// error, so callers can decide whether to keep serving with possibly
// stale version information.
type RedisSource struct {
	redis     *redis.Client
	logger    zerolog.Logger
	lastKnown atomic.Int64
}

// NewRedisSource creates a Redis-backed version source.
func NewRedisSource(redisClient *redis.Client, logger zerolog.Logger) *RedisSource {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisSource{
		redis:  redisClient,
		logger: logger,
	}
}

// Current reads the shared change version from Redis.
// A missing key means no content has changed yet and reads as version 0.
func (s *RedisSource) Current(ctx context.Context) (int64, error) {
	version, err := s.redis.Get(ctx, RedisKeyChangeVersion).Int64()
	if err != nil {
		if err == redis.Nil {
			s.logger.Debug().Msg("No shared change version in Redis, reading as zero")
			return 0, nil
		}
		changeVersionErrorsTotal.Inc()
		return s.lastKnown.Load(), fmt.Errorf("redis get change version: %w", err)
	}

	s.lastKnown.Store(version)
	changeVersionGauge.Set(float64(version))
	return version, nil
}

// Bump increments the shared change version and returns the new value.
// Call it when tracked content is published, updated, or removed.
func (s *RedisSource) Bump(ctx context.Context) (int64, error) {
	version, err := s.redis.Incr(ctx, RedisKeyChangeVersion).Result()
	if err != nil {
		changeVersionErrorsTotal.Inc()
		return s.lastKnown.Load(), fmt.Errorf("redis incr change version: %w", err)
	}

	s.lastKnown.Store(version)
	changeVersionGauge.Set(float64(version))
	changeVersionBumpsTotal.Inc()

	s.logger.Info().
		Int64("change_version", version).
		Msg("Shared change version bumped")

	return version, nil
}
