package cache

import "time"

// Cache is the minimal key/value capability the metered decorator wraps.
// All methods must be safe for concurrent use by multiple goroutines.
type Cache[K comparable, V any] interface {
	// Get returns the value for k and a boolean flag indicating presence.
	Get(k K) (V, bool)

	// Set inserts or updates k→v. If k already holds an entry, that entry
	// leaves the cache (its OnEvict fires with ReasonReplaced) and the new
	// entry takes its place with the options provided here.
	Set(k K, v V, opts EntryOptions[K, V])

	// Remove deletes k if present and returns true on success. The removed
	// entry's OnEvict fires with ReasonRemoved.
	Remove(k K) bool
}

// EvictionFunc is a one-shot per-entry eviction notification. It is invoked
// exactly once when the stored entry leaves the cache, on an arbitrary
// goroutine, with the reason the entry left.
type EvictionFunc[K comparable, V any] func(key K, value V, reason EvictionReason)

// EntryOptions carries per-entry settings handed to Set.
// The zero value is valid: no callback, no token, the cache's default TTL.
type EntryOptions[K comparable, V any] struct {
	// TTL is the entry's relative time-to-live.
	//   0  — use the cache's default TTL (if it has one)
	//   <0 — never expire
	TTL time.Duration

	// Token is an optional expiration token. Once it is closed (or a value
	// is sent on it) the entry becomes invalid and is evicted with
	// ReasonTokenExpired. Implementations without token support ignore it.
	Token <-chan struct{}

	// OnEvict fires exactly once when this entry leaves the cache.
	OnEvict EvictionFunc[K, V]
}
