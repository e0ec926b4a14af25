package cache

// EvictionReason explains why a stored entry left the cache.
//
// Removed and Replaced result from explicit caller action (a Remove call or
// an overwriting Set); the remaining non-None reasons are cache-initiated
// reclamation. The distinction matters to observability: only
// cache-initiated reclamation is an "eviction" worth alerting on.
type EvictionReason uint8

const (
	// ReasonNone — no eviction occurred. Reserved; never passed to callbacks.
	ReasonNone EvictionReason = iota
	// ReasonRemoved — the caller removed the entry explicitly.
	ReasonRemoved
	// ReasonReplaced — the caller overwrote the entry with a new Set.
	ReasonReplaced
	// ReasonExpired — the entry's TTL deadline passed.
	ReasonExpired
	// ReasonTokenExpired — the entry's expiration token fired.
	ReasonTokenExpired
	// ReasonCapacity — the entry was reclaimed to satisfy a capacity limit.
	ReasonCapacity
)

// String returns a stable, backend-friendly label value for the reason.
func (r EvictionReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonRemoved:
		return "removed"
	case ReasonReplaced:
		return "replaced"
	case ReasonExpired:
		return "expired"
	case ReasonTokenExpired:
		return "token_expired"
	case ReasonCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}
