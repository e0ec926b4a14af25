// Package metered provides a transparent instrumentation decorator for any
// cache.Cache: pass-through Get/Set/Remove plus lock-free hit/miss/eviction
// counting, published to an OpenTelemetry meter as pull-based observable
// counters.
//
// Counting model
//
// Every operation performs exactly one atomic add on a per-instance counter
// bank; nothing is pushed to the backend per operation and nothing
// allocates on the hot path. The metrics backend pulls: at its own cadence
// it invokes the callback registered at construction, which snapshots the
// counter bank and composes a fresh, immutable tag set per reading
// (cache.name and custom tags plus one dynamic dimension — result=hit|miss
// for lookups, reason=expired|token_expired|capacity for evictions).
//
// Eviction accounting
//
// Set chains a one-shot eviction callback onto every inserted entry. When
// the wrapped cache later removes the entry — on any goroutine — the
// callback classifies the reason: cache-initiated reclamation (Expired,
// TokenExpired, Capacity) is counted; caller-driven removal or overwrite
// (Removed, Replaced) is not. The handler never panics back into the
// wrapped cache's removal machinery.
//
// Lifecycle
//
// Instances are created against a Registry, which enforces cache-name
// uniqueness per meter so two instances can never emit under the same
// tags. Close is idempotent and race-free: exactly one caller unregisters
// the instruments and (optionally) closes the wrapped cache; operations on
// a closed instance return ErrClosed.
package metered
