package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client. Unit tests skip when no
// local Redis is available; the containerized flow lives in
// tests/integration.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestRedisProvider_SetAndGet(t *testing.T) {
	provider := NewRedisProvider(setupTestRedis(t))
	ctx := context.Background()

	if err := provider.Set(ctx, "burst:test", []byte("body"), time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, found, err := provider.Get(ctx, "burst:test")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("value not found after Set")
	}
	if string(data) != "body" {
		t.Errorf("value = %q, want %q", data, "body")
	}
}

func TestRedisProvider_GetMissing(t *testing.T) {
	provider := NewRedisProvider(setupTestRedis(t))

	_, found, err := provider.Get(context.Background(), "burst:missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("missing key reported as found")
	}
}

func TestRedisProvider_ExpiredNotStored(t *testing.T) {
	provider := NewRedisProvider(setupTestRedis(t))
	ctx := context.Background()

	if err := provider.Set(ctx, "burst:expired", []byte("body"), time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, found, err := provider.Get(ctx, "burst:expired")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("already-expired value was stored")
	}
}

func TestRedisProvider_Dependencies(t *testing.T) {
	provider := NewRedisProvider(setupTestRedis(t))
	ctx := context.Background()

	if err := provider.AddDependency(ctx, "product-1", "burst:a"); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if err := provider.AddDependency(ctx, "product-1", "burst:b"); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	keys, err := provider.DependentKeys(ctx, "product-1")
	if err != nil {
		t.Fatalf("DependentKeys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("DependentKeys returned %d keys, want 2", len(keys))
	}

	if err := provider.ClearDependency(ctx, "product-1"); err != nil {
		t.Fatalf("ClearDependency failed: %v", err)
	}

	keys, err = provider.DependentKeys(ctx, "product-1")
	if err != nil {
		t.Fatalf("DependentKeys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("DependentKeys after clear returned %d keys, want 0", len(keys))
	}
}
