// Package hashlru adapts hashicorp/golang-lru to the cache.Cache contract,
// classifying every entry departure with an eviction reason so the metered
// decorator can tell capacity pressure apart from caller action.
//
// The underlying LRU has no TTL or token support; EntryOptions.TTL and
// EntryOptions.Token are ignored. Entries live until they are removed,
// overwritten, or pushed out by capacity.
package hashlru

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rjmurillo/cachemetrics/cache"
)

// entry wraps the stored value with its one-shot eviction callback, since
// the LRU only supports a single cache-wide eviction hook.
type entry[K comparable, V any] struct {
	val     V
	onEvict cache.EvictionFunc[K, V]
}

// Cache adapts *lru.Cache to cache.Cache. Safe for concurrent use.
type Cache[K comparable, V any] struct {
	// mu serializes mutations so the eviction hook can classify them: the
	// hook fires during Set/Remove on the calling goroutine, and the flag
	// below tells it which explicit operation (if any) is in flight.
	mu        sync.Mutex
	lru       *lru.Cache[K, entry[K, V]]
	removing  bool
	replacing bool
}

var _ cache.Cache[string, int] = (*Cache[string, int])(nil)

// New creates an adapter over a fresh LRU with the given capacity.
func New[K comparable, V any](size int) (*Cache[K, V], error) {
	c := &Cache[K, V]{}
	l, err := lru.NewWithEvict[K, entry[K, V]](size, c.onEvicted)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Get returns the value for k, promoting the entry.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	e, ok := c.lru.Get(k)
	return e.val, ok
}

// Set inserts or updates k→v. Overwriting fires the old entry's callback
// with ReasonReplaced; an insertion that pushes out the LRU tail fires that
// entry's callback with ReasonCapacity.
func (c *Cache[K, V]) Set(k K, v V, opts cache.EntryOptions[K, V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The LRU updates in place without invoking its hook, so route an
	// overwrite through Remove with the replacing flag set: the hook then
	// delivers the old entry's notification as ReasonReplaced.
	if _, ok := c.lru.Peek(k); ok {
		c.replacing = true
		c.lru.Remove(k)
		c.replacing = false
	}
	c.lru.Add(k, entry[K, V]{val: v, onEvict: opts.OnEvict})
}

// Remove deletes k if present. The entry's callback fires with
// ReasonRemoved.
func (c *Cache[K, V]) Remove(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removing = true
	ok := c.lru.Remove(k)
	c.removing = false
	return ok
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// onEvicted is the LRU's cache-wide hook. The LRU invokes it on the
// mutating goroutine after releasing its own lock, so c.mu (held by the
// mutation that triggered it) is what makes the classification flags safe.
func (c *Cache[K, V]) onEvicted(k K, e entry[K, V]) {
	if e.onEvict == nil {
		return
	}
	reason := cache.ReasonCapacity
	switch {
	case c.replacing:
		reason = cache.ReasonReplaced
	case c.removing:
		reason = cache.ReasonRemoved
	}
	e.onEvict(k, e.val, reason)
}
