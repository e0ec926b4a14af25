// Package cache defines the minimal capability contract a key/value cache
// must satisfy to be wrapped by the metered decorator, plus the eviction
// vocabulary shared by every implementation: the EvictionReason enumeration
// and the per-entry eviction callback.
//
// The contract is deliberately small — Get, Set, Remove — so that any
// conforming cache can be wrapped, whether it is the reference
// implementation in cache/memory or an adapter over a third-party library
// (see cache/hashlru and cache/gocache).
//
// Eviction callbacks
//
// An entry may carry a one-shot callback via EntryOptions.OnEvict. The
// implementation MUST invoke it exactly once when that stored entry leaves
// the cache, passing the key, the value, and the reason it left. The
// callback may run on any goroutine (a janitor sweep, a capacity trim
// inside an unrelated Set, the caller's own Remove) and with no ordering
// guarantee other than "after the entry's own Set, at most once".
// Implementations should not hold internal locks across the callback where
// they can avoid it; callbacks must never assume they may re-enter the
// cache.
package cache
