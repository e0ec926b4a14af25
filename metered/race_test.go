package metered_test

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rjmurillo/cachemetrics/cache"
	"github.com/rjmurillo/cachemetrics/cache/memory"
	"github.com/rjmurillo/cachemetrics/metered"
)

// N goroutines each perform M interleaved lookups; the lock-free counters
// must not lose a single update: hits + misses == N*M exactly.
func TestRace_LookupAccounting(t *testing.T) {
	c, err := metered.New[string, string](newMemory(t, 1024, 8), newRegistry(), metered.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	// Half the keyspace resident, so both counters see traffic.
	for i := 0; i < 512; i++ {
		set(t, c, "k:"+strconv.Itoa(i), "v")
	}

	const (
		N = 16
		M = 10_000
	)
	var wg sync.WaitGroup
	wg.Add(N)
	for w := 0; w < N; w++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < M; i++ {
				// Interleave residents and absentees.
				k := "k:" + strconv.Itoa((id*M+i)%1024)
				_, _, _ = c.Get(k)
			}
		}(w)
	}
	wg.Wait()

	s := c.Stats()
	if got := s.Hits + s.Misses; got != N*M {
		t.Fatalf("hits+misses = %d, want %d (lost updates)", got, N*M)
	}
}

// Eviction callbacks race foreground operations and Close without panics,
// deadlocks, or detector reports.
func TestRace_EvictionsDuringClose(t *testing.T) {
	// Aggressive janitor so evictions keep firing on a background
	// goroutine while the decorator is being closed.
	inner, err := memory.New[string, string](memory.Options[string, string]{
		Capacity:      1024,
		Shards:        8,
		SweepInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = inner.Close() })

	c, err := metered.New[string, string](inner, newRegistry(), metered.Options{})
	if err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			i := 0
			for {
				select {
				case <-stop:
					return
				default:
				}
				k := "k:" + strconv.Itoa((id*1_000_000+i)%4096)
				// Short TTLs keep the janitor busy evicting behind our back.
				err := c.Set(k, "v", cache.EntryOptions[string, string]{
					TTL: time.Duration(1+i%5) * time.Millisecond,
				})
				if err != nil {
					return // closed underneath us; expected
				}
				_, _, _ = c.Get(k)
				i++
			}
		}(w)
	}

	time.Sleep(100 * time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	close(stop)
	wg.Wait()
}
