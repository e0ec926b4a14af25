package memory

import "github.com/rjmurillo/cachemetrics/cache"

// node is an intrusive doubly linked list element owned by a shard.
// It stores the key/value alongside list links, the expiration deadline,
// the optional expiration token, and the entry's one-shot eviction callback.
type node[K comparable, V any] struct {
	key K
	val V

	// Intrusive list links: head is MRU, tail is LRU.
	prev *node[K, V]
	next *node[K, V]

	// Absolute expiration deadline in UnixNano. Zero means "no TTL".
	exp int64

	// Expiration token; nil means "no token".
	token <-chan struct{}

	// Fires exactly once when this entry leaves the cache.
	onEvict cache.EvictionFunc[K, V]
}
