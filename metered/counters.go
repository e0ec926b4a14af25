package metered

import (
	"github.com/rjmurillo/cachemetrics/cache"
	"github.com/rjmurillo/cachemetrics/internal/util"
)

// counterBank holds one padded atomic counter per tracked signal.
// Increments are lock-free and safe from unbounded goroutines, including
// eviction-callback goroutines racing application threads. Counters only
// ever grow; reads are individually atomic (cross-counter consistency is
// not required — backends tolerate a snapshot whose counters were read a
// few nanoseconds apart).
type counterBank struct {
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64

	// One slot per EvictionReason; only counted reasons are ever bumped.
	evictions [int(cache.ReasonCapacity) + 1]util.PaddedAtomicUint64
}

func (b *counterBank) hit()  { b.hits.Add(1) }
func (b *counterBank) miss() { b.misses.Add(1) }

func (b *counterBank) evict(r cache.EvictionReason) {
	b.evictions[r].Add(1)
}

// snapshot reads every counter atomically for one poll.
func (b *counterBank) snapshot() Stats {
	return Stats{
		Hits:         b.hits.Load(),
		Misses:       b.misses.Load(),
		Expired:      b.evictions[cache.ReasonExpired].Load(),
		TokenExpired: b.evictions[cache.ReasonTokenExpired].Load(),
		Capacity:     b.evictions[cache.ReasonCapacity].Load(),
	}
}

// Stats is a point-in-time reading of one instance's counters.
type Stats struct {
	Hits   uint64
	Misses uint64

	// Counted evictions by reason. Removed/Replaced are caller-driven and
	// deliberately absent.
	Expired      uint64
	TokenExpired uint64
	Capacity     uint64
}

// Evictions returns the total number of counted evictions.
func (s Stats) Evictions() uint64 {
	return s.Expired + s.TokenExpired + s.Capacity
}

// byReason returns the eviction count for a counted reason.
func (s Stats) byReason(r cache.EvictionReason) uint64 {
	switch r {
	case cache.ReasonExpired:
		return s.Expired
	case cache.ReasonTokenExpired:
		return s.TokenExpired
	case cache.ReasonCapacity:
		return s.Capacity
	default:
		return 0
	}
}
