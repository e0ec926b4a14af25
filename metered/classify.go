package metered

import "github.com/rjmurillo/cachemetrics/cache"

// counted reports whether an eviction reason represents cache-initiated
// reclamation. Removed and Replaced result from explicit caller action
// (a Remove call or an overwriting Set) and are excluded: a user-driven
// update is not cache pressure.
func counted(r cache.EvictionReason) bool {
	switch r {
	case cache.ReasonExpired, cache.ReasonTokenExpired, cache.ReasonCapacity:
		return true
	default:
		return false
	}
}

// countedReasons enumerates every reason the eviction instrument reports,
// in the order readings are emitted.
var countedReasons = [...]cache.EvictionReason{
	cache.ReasonExpired,
	cache.ReasonTokenExpired,
	cache.ReasonCapacity,
}
