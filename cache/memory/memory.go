// Package memory provides the reference in-memory implementation of the
// cache.Cache contract: a sharded LRU with per-entry TTL deadlines,
// expiration tokens, exactly-once eviction callbacks carrying reasons,
// an optional background janitor, and singleflight loading.
//
// Expiration is dual: lazy on read (an expired entry found by Get is
// evicted and reported as a miss) and active via the janitor sweep, so
// entries that are never read again still fire their eviction callbacks.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/rjmurillo/cachemetrics/cache"
	"github.com/rjmurillo/cachemetrics/internal/singleflight"
	"github.com/rjmurillo/cachemetrics/internal/util"
)

// ErrNoLoader is returned by GetOrLoad when no Loader was configured.
var ErrNoLoader = errors.New("memory: no Loader provided")

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache. Zero values are safe except Capacity,
// which must be positive:
//   - Shards <= 0        => auto (≈2×GOMAXPROCS, rounded to a power of two)
//   - DefaultTTL == 0    => entries without a per-entry TTL never expire
//   - SweepInterval == 0 => lazy expiration only (no janitor goroutine)
//   - nil Clock          => time.Now()
type Options[K comparable, V any] struct {
	// Capacity is the entry count limit, split evenly across shards.
	Capacity int

	// Shards is the number of partitions. Rounded up to a power of two.
	Shards int

	// DefaultTTL applies to entries whose EntryOptions.TTL is zero.
	DefaultTTL time.Duration

	// SweepInterval is the janitor cadence for active expiration.
	SweepInterval time.Duration

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// Clock allows overriding the time source (tests).
	Clock Clock
}

// Cache is a sharded in-memory LRU implementing cache.Cache.
// All methods are safe for concurrent use by multiple goroutines.
type Cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	opt    Options[K, V]

	janitor *janitor

	// singleflight group coalescing concurrent loads in GetOrLoad.
	sf singleflight.Group[K, V]
}

var _ cache.Cache[string, string] = (*Cache[string, string])(nil)

// New constructs a cache with the provided Options.
func New[K comparable, V any](opt Options[K, V]) (*Cache[K, V], error) {
	if opt.Capacity <= 0 {
		return nil, errors.New("memory: Capacity must be > 0")
	}

	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount()
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}

	cs := make([]*shard[K, V], sh)
	perShardCap := (opt.Capacity + sh - 1) / sh
	for i := range cs {
		cs[i] = newShard[K, V](perShardCap, opt)
	}

	c := &Cache[K, V]{
		shards: cs,
		hash:   util.Fnv64a[K],
		opt:    opt,
	}
	if opt.SweepInterval > 0 {
		c.janitor = startJanitor(opt.SweepInterval, func() {
			for _, s := range cs {
				s.sweep()
			}
		})
	}
	return c, nil
}

// Get returns the value for k and a presence flag.
// On hit, the entry is promoted to MRU.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	return c.getShard(k).get(k)
}

// Set inserts or updates k→v. A replaced entry's callback fires with
// ReasonReplaced; entries displaced by the capacity limit fire with
// ReasonCapacity.
func (c *Cache[K, V]) Set(k K, v V, opts cache.EntryOptions[K, V]) {
	c.getShard(k).set(k, v, c.deadline(opts.TTL), opts)
}

// Remove deletes k if present and returns true on success.
func (c *Cache[K, V]) Remove(k K) bool {
	return c.getShard(k).remove(k)
}

// Len returns the total number of resident entries across all shards.
func (c *Cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.size()
	}
	return total
}

// Close stops the janitor (if any). Resident entries are released without
// eviction notifications: teardown is not an eviction event.
func (c *Cache[K, V]) Close() error {
	if c.janitor != nil {
		c.janitor.stop()
	}
	return nil
}

// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
// Concurrent loads for the same key are coalesced (singleflight).
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}
	return c.sf.Do(ctx, k, func() (V, error) {
		// double-check after flight join
		if v, ok := c.Get(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err == nil {
			c.Set(k, v, cache.EntryOptions[K, V]{})
		}
		return v, err
	})
}

// getShard picks a shard by hashing the key and masking with len-1.
// len(c.shards) is guaranteed to be a power of two.
func (c *Cache[K, V]) getShard(k K) *shard[K, V] {
	h := c.hash(k)
	return c.shards[int(h)&(len(c.shards)-1)]
}

// deadline converts a relative TTL into an absolute UnixNano deadline.
// ttl == 0 falls back to DefaultTTL; a negative ttl disables expiration.
func (c *Cache[K, V]) deadline(ttl time.Duration) int64 {
	if ttl == 0 {
		ttl = c.opt.DefaultTTL
	}
	if ttl <= 0 {
		return 0
	}
	now := int64(0)
	if c.opt.Clock != nil {
		now = c.opt.Clock.NowUnixNano()
	} else {
		now = time.Now().UnixNano()
	}
	return now + int64(ttl)
}
