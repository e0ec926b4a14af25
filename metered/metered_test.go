package metered_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/rjmurillo/cachemetrics/cache"
	"github.com/rjmurillo/cachemetrics/cache/memory"
	"github.com/rjmurillo/cachemetrics/metered"
)

func newRegistry() *metered.Registry {
	return metered.NewRegistry(noop.NewMeterProvider().Meter("test"))
}

func newMemory(t *testing.T, capacity, shards int) *memory.Cache[string, string] {
	t.Helper()
	c, err := memory.New[string, string](memory.Options[string, string]{
		Capacity: capacity,
		Shards:   shards,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func set(t *testing.T, c *metered.Cache[string, string], k, v string) {
	t.Helper()
	if err := c.Set(k, v, cache.EntryOptions[string, string]{}); err != nil {
		t.Fatal(err)
	}
}

// insert "k1"; get("k1") → hit (hits=1, misses=0); get("k2") → miss.
func TestMetered_HitMissScenario(t *testing.T) {
	t.Parallel()

	c, err := metered.New[string, string](newMemory(t, 8, 1), newRegistry(), metered.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	set(t, c, "k1", "v")
	if v, ok, err := c.Get("k1"); err != nil || !ok || v != "v" {
		t.Fatalf("Get k1 = %q ok=%v err=%v", v, ok, err)
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 0 {
		t.Fatalf("after hit: %+v", s)
	}
	if _, ok, err := c.Get("k2"); err != nil || ok {
		t.Fatalf("Get k2 ok=%v err=%v", ok, err)
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("after miss: %+v", s)
	}
}

// Capacity pressure on the wrapped cache is counted as an eviction.
func TestMetered_CapacityEvictionCounted(t *testing.T) {
	t.Parallel()

	c, err := metered.New[string, string](newMemory(t, 1, 1), newRegistry(), metered.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	set(t, c, "k1", "v1")
	set(t, c, "k2", "v2") // displaces k1

	if s := c.Stats(); s.Capacity != 1 || s.Evictions() != 1 {
		t.Fatalf("want one Capacity eviction, got %+v", s)
	}
}

// Explicit Remove and overwriting Set are caller actions, not evictions.
func TestMetered_RemovedAndReplacedExcluded(t *testing.T) {
	t.Parallel()

	c, err := metered.New[string, string](newMemory(t, 8, 1), newRegistry(), metered.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	set(t, c, "k1", "v1")
	set(t, c, "k1", "v2") // overwrite → Replaced, excluded
	if ok, err := c.Remove("k1"); err != nil || !ok {
		t.Fatalf("Remove k1 ok=%v err=%v", ok, err)
	}

	if s := c.Stats(); s.Evictions() != 0 {
		t.Fatalf("caller-driven departures must not count, got %+v", s)
	}
}

// The caller's own eviction callback still fires after counting, and a
// panic inside it never propagates into the wrapped cache's removal path.
func TestMetered_CallbackChainingAndSuppression(t *testing.T) {
	t.Parallel()

	c, err := metered.New[string, string](newMemory(t, 1, 1), newRegistry(), metered.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	var fired atomic.Int32
	opts := cache.EntryOptions[string, string]{
		OnEvict: func(_ string, _ string, reason cache.EvictionReason) {
			fired.Add(1)
			if reason != cache.ReasonCapacity {
				t.Errorf("want Capacity, got %v", reason)
			}
			panic("user callback exploded")
		},
	}
	if err := c.Set("k1", "v1", opts); err != nil {
		t.Fatal(err)
	}
	set(t, c, "k2", "v2") // displaces k1; must not panic out of Set

	if fired.Load() != 1 {
		t.Fatalf("user callback fired %d times, want 1", fired.Load())
	}
	if s := c.Stats(); s.Capacity != 1 {
		t.Fatalf("eviction must be counted before the user callback, got %+v", s)
	}
}

func TestMetered_ConstructionErrors(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	inner := newMemory(t, 8, 1)

	if _, err := metered.New[string, string](nil, reg, metered.Options{}); !errors.Is(err, metered.ErrNilCache) {
		t.Fatalf("nil cache: got %v", err)
	}
	if _, err := metered.New[string, string](inner, nil, metered.Options{}); !errors.Is(err, metered.ErrNilRegistry) {
		t.Fatalf("nil registry: got %v", err)
	}
}

func TestMetered_UseAfterClose(t *testing.T) {
	t.Parallel()

	c, err := metered.New[string, string](newMemory(t, 8, 1), newRegistry(), metered.Options{})
	if err != nil {
		t.Fatal(err)
	}
	set(t, c, "k1", "v")

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("repeated Close must be a no-op, got %v", err)
	}

	if _, _, err := c.Get("k1"); !errors.Is(err, metered.ErrClosed) {
		t.Fatalf("Get after close: got %v", err)
	}
	if err := c.Set("k1", "v", cache.EntryOptions[string, string]{}); !errors.Is(err, metered.ErrClosed) {
		t.Fatalf("Set after close: got %v", err)
	}
	if _, err := c.Remove("k1"); !errors.Is(err, metered.ErrClosed) {
		t.Fatalf("Remove after close: got %v", err)
	}

	// Final counts stay readable.
	if s := c.Stats(); s.Misses != 0 {
		t.Fatalf("stats after close: %+v", s)
	}
}

// closeCounter counts Close calls on the wrapped cache.
type closeCounter struct {
	cache.Cache[string, string]
	closes atomic.Int32
}

func (c *closeCounter) Close() error {
	c.closes.Add(1)
	return nil
}

// Invoking Close from many goroutines at once runs teardown exactly once.
func TestMetered_ConcurrentCloseIdempotent(t *testing.T) {
	t.Parallel()

	inner := &closeCounter{Cache: newMemory(t, 8, 1)}
	reg := newRegistry()
	c, err := metered.New[string, string](inner, reg, metered.Options{Name: "users", CloseWrapped: true})
	if err != nil {
		t.Fatal(err)
	}

	const K = 32
	var wg sync.WaitGroup
	wg.Add(K)
	errs := make(chan error, K)
	for i := 0; i < K; i++ {
		go func() {
			defer wg.Done()
			errs <- c.Close()
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent Close deadlocked")
	}
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Close returned %v", err)
		}
	}
	if got := inner.closes.Load(); got != 1 {
		t.Fatalf("wrapped cache closed %d times, want 1", got)
	}

	// The name is released; a new instance may claim it.
	c2, err := metered.New[string, string](newMemory(t, 8, 1), reg, metered.Options{Name: "users"})
	if err != nil {
		t.Fatalf("name not released on close: %v", err)
	}
	_ = c2.Close()
}
