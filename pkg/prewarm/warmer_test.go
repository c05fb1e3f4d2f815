package prewarm

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWarmer_WarmsAllPaths(t *testing.T) {
	var calls atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, "ok")
	})

	warmer := NewWarmer(handler, DefaultConfig(), zerolog.Nop())

	paths := []string{"/a", "/b", "/c", "/d"}
	result, err := warmer.Warm(context.Background(), paths)
	if err != nil {
		t.Fatalf("Warm() error: %v", err)
	}
	if result.Warmed != len(paths) {
		t.Errorf("Warmed = %d, want %d", result.Warmed, len(paths))
	}
	if result.Failed != 0 {
		t.Errorf("Failed = %d, want 0", result.Failed)
	}
	if calls.Load() != int64(len(paths)) {
		t.Errorf("handler calls = %d, want %d", calls.Load(), len(paths))
	}
}

func TestWarmer_ToleratesPartialFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "ok")
	})

	warmer := NewWarmer(handler, DefaultConfig(), zerolog.Nop())

	result, err := warmer.Warm(context.Background(), []string{"/a", "/broken", "/b"})
	if err != nil {
		t.Fatalf("Warm() error: %v (partial failure must not fail the run)", err)
	}
	if result.Warmed != 2 {
		t.Errorf("Warmed = %d, want 2", result.Warmed)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
}

func TestWarmer_AllPathsFailing(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	warmer := NewWarmer(handler, DefaultConfig(), zerolog.Nop())

	result, err := warmer.Warm(context.Background(), []string{"/a", "/b"})
	if err == nil {
		t.Fatal("Warm() expected error when every path fails")
	}
	if result.Warmed != 0 {
		t.Errorf("Warmed = %d, want 0", result.Warmed)
	}
	if result.Failed != 2 {
		t.Errorf("Failed = %d, want 2", result.Failed)
	}
}

func TestWarmer_RespectsConcurrencyLimit(t *testing.T) {
	var current, peak atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		fmt.Fprint(w, "ok")
	})

	config := Config{MaxConcurrency: 2, Timeout: 5 * time.Second}
	warmer := NewWarmer(handler, config, zerolog.Nop())

	paths := make([]string, 10)
	for i := range paths {
		paths[i] = fmt.Sprintf("/page/%d", i)
	}

	if _, err := warmer.Warm(context.Background(), paths); err != nil {
		t.Fatalf("Warm() error: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestWarmer_DefaultsAppliedForZeroConfig(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	warmer := NewWarmer(handler, Config{}, zerolog.Nop())
	if warmer.config.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", warmer.config.MaxConcurrency)
	}
	if warmer.config.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", warmer.config.Timeout)
	}
}
