// Package gocache adapts patrickmn/go-cache to the cache.Cache contract
// for string keys, classifying entry departures: TTL expiry is
// ReasonExpired, explicit deletion is ReasonRemoved, an overwriting Set is
// ReasonReplaced.
//
// Expiration tokens (EntryOptions.Token) are not supported by the
// underlying store and are ignored.
package gocache

import (
	"sync"
	"time"

	gc "github.com/patrickmn/go-cache"

	"github.com/rjmurillo/cachemetrics/cache"
)

// entry wraps the stored value with its one-shot eviction callback, since
// go-cache only supports a single cache-wide OnEvicted hook.
type entry[V any] struct {
	val     V
	onEvict cache.EvictionFunc[string, V]
}

// Cache adapts *gc.Cache to cache.Cache[string, V]. Safe for concurrent
// use.
type Cache[V any] struct {
	gc *gc.Cache

	// pending marks keys with an explicit operation in flight so the
	// OnEvicted hook — which also fires from the store's own janitor
	// goroutine — can classify the departure. Guarded by its own mutex so
	// the hook never deadlocks against the operation that triggered it.
	mu      sync.Mutex
	pending map[string]cache.EvictionReason
}

var _ cache.Cache[string, int] = (*Cache[int])(nil)

// New creates an adapter over a fresh go-cache store. defaultTTL applies
// to entries whose EntryOptions.TTL is zero; cleanupInterval is the
// store's janitor cadence (expired entries fire callbacks at that
// cadence at the latest).
func New[V any](defaultTTL, cleanupInterval time.Duration) *Cache[V] {
	c := &Cache[V]{
		gc:      gc.New(defaultTTL, cleanupInterval),
		pending: make(map[string]cache.EvictionReason),
	}
	c.gc.OnEvicted(c.onEvicted)
	return c
}

// Get returns the value for k. Expired-but-unswept entries read as misses.
func (c *Cache[V]) Get(k string) (V, bool) {
	x, ok := c.gc.Get(k)
	if !ok {
		var zero V
		return zero, false
	}
	return x.(entry[V]).val, true
}

// Set inserts or updates k→v. A live existing entry is deleted first
// under a Replaced marker so its callback fires exactly once with
// ReasonReplaced (go-cache does not invoke OnEvicted for in-place
// overwrites). An expired-but-unswept entry departs as Expired instead:
// the marker is only placed after a liveness check, so a racing expiry
// keeps its reason. The check-then-mark window can still misclassify an
// entry expiring at that exact instant.
func (c *Cache[V]) Set(k string, v V, opts cache.EntryOptions[string, V]) {
	if _, live := c.gc.Get(k); live {
		c.mark(k, cache.ReasonReplaced)
		c.gc.Delete(k)
		c.unmark(k)
	} else {
		c.gc.Delete(k)
	}

	c.gc.Set(k, entry[V]{val: v, onEvict: opts.OnEvict}, mapTTL(opts.TTL))
}

// Remove deletes k if present and live. The entry's callback fires with
// ReasonRemoved. An expired-but-unswept entry is not a successful remove;
// its callback fires with ReasonExpired.
func (c *Cache[V]) Remove(k string) bool {
	if _, live := c.gc.Get(k); !live {
		c.gc.Delete(k)
		return false
	}
	c.mark(k, cache.ReasonRemoved)
	c.gc.Delete(k)
	c.unmark(k)
	return true
}

// Len returns the number of entries, including expired-but-unswept ones.
func (c *Cache[V]) Len() int {
	return c.gc.ItemCount()
}

// onEvicted is go-cache's cache-wide hook. It fires from Delete on the
// mutating goroutine and from the janitor's DeleteExpired on its own
// goroutine; the pending marker decides which.
func (c *Cache[V]) onEvicted(k string, x interface{}) {
	e := x.(entry[V])
	if e.onEvict == nil {
		return
	}
	reason := cache.ReasonExpired
	c.mu.Lock()
	if r, ok := c.pending[k]; ok {
		reason = r
	}
	c.mu.Unlock()
	e.onEvict(k, e.val, reason)
}

func (c *Cache[V]) mark(k string, r cache.EvictionReason) {
	c.mu.Lock()
	c.pending[k] = r
	c.mu.Unlock()
}

func (c *Cache[V]) unmark(k string) {
	c.mu.Lock()
	delete(c.pending, k)
	c.mu.Unlock()
}

// mapTTL translates the contract's TTL convention to go-cache's:
// 0 → store default, negative → never expire.
func mapTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl == 0:
		return gc.DefaultExpiration
	case ttl < 0:
		return gc.NoExpiration
	default:
		return ttl
	}
}
