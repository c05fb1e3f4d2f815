package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for dependency sets.
const redisDependencyPrefix = "burst:dep:"

// RedisProvider is a Provider backed by Redis. Hard expiration maps to
// the Redis TTL, so Redis evicts entries on its own; dependency sets are
// kept as Redis sets under redisDependencyPrefix.
type RedisProvider struct {
	redis *redis.Client
}

// NewRedisProvider creates a Redis-backed provider.
func NewRedisProvider(redisClient *redis.Client) *RedisProvider {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisProvider{redis: redisClient}
}

// Name identifies the provider.
func (p *RedisProvider) Name() string { return "redis" }

// Get returns the stored value. Redis expires entries itself, so a
// missing key covers both eviction and expiry.
func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := p.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

// Set stores a value with the Redis TTL derived from expiresAt. Values
// already past their expiration are not stored.
func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := p.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a stored value.
func (p *RedisProvider) Delete(ctx context.Context, key string) error {
	if err := p.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// AddDependency records a content dependency for a key.
func (p *RedisProvider) AddDependency(ctx context.Context, contentID, key string) error {
	if err := p.redis.SAdd(ctx, redisDependencyPrefix+contentID, key).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// DependentKeys returns the keys depending on a content item.
func (p *RedisProvider) DependentKeys(ctx context.Context, contentID string) ([]string, error) {
	keys, err := p.redis.SMembers(ctx, redisDependencyPrefix+contentID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	return keys, nil
}

// ClearDependency drops the dependency set for a content item.
func (p *RedisProvider) ClearDependency(ctx context.Context, contentID string) error {
	if err := p.redis.Del(ctx, redisDependencyPrefix+contentID).Err(); err != nil {
		return fmt.Errorf("redis del dependency: %w", err)
	}
	return nil
}
