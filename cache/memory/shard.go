package memory

import (
	"sync"
	"time"

	"github.com/rjmurillo/cachemetrics/cache"
)

// shard is an independent partition of the cache with its own lock, map,
// and an intrusive doubly linked list (head=MRU, tail=LRU).
//
// Eviction callbacks are never invoked while mu is held: every mutation
// collects the entries it displaced and fires their callbacks after the
// lock is released. This keeps callbacks free to take their own locks
// (the metered decorator's Close path relies on it).
type shard[K comparable, V any] struct {
	mu   sync.RWMutex
	m    map[K]*node[K, V]
	head *node[K, V] // MRU
	tail *node[K, V] // LRU
	len  int
	cap  int

	opt Options[K, V]
}

// fired is a pending eviction notification, captured under the shard lock
// and delivered after it is released.
type fired[K comparable, V any] struct {
	key    K
	val    V
	reason cache.EvictionReason
	fn     cache.EvictionFunc[K, V]
}

func newShard[K comparable, V any](capacity int, opt Options[K, V]) *shard[K, V] {
	return &shard[K, V]{
		m:   make(map[K]*node[K, V], capacity),
		cap: capacity,
		opt: opt,
	}
}

// set inserts or replaces the entry for k. A replaced entry leaves the
// cache with ReasonReplaced; inserting may displace the LRU tail with
// ReasonCapacity.
func (s *shard[K, V]) set(k K, v V, exp int64, opts cache.EntryOptions[K, V]) {
	s.mu.Lock()
	var evs []fired[K, V]

	if old, ok := s.m[k]; ok {
		evs = s.evictLocked(evs, old, cache.ReasonReplaced)
	}
	n := &node[K, V]{key: k, val: v, exp: exp, token: opts.Token, onEvict: opts.OnEvict}
	s.m[k] = n
	s.pushFrontLocked(n)

	for s.len > s.cap {
		tail := s.tail
		if tail == nil {
			break
		}
		evs = s.evictLocked(evs, tail, cache.ReasonCapacity)
	}
	s.mu.Unlock()

	fire(evs)
}

// get returns the value for k, promoting the entry to MRU on a hit.
// Expired entries (deadline or token) are evicted lazily and reported
// as a miss.
func (s *shard[K, V]) get(k K) (V, bool) {
	s.mu.Lock()
	n, ok := s.m[k]
	if !ok {
		s.mu.Unlock()
		var zero V
		return zero, false
	}
	if reason, dead := s.deadLocked(n); dead {
		evs := s.evictLocked(nil, n, reason)
		s.mu.Unlock()
		fire(evs)
		var zero V
		return zero, false
	}
	s.moveToFrontLocked(n)
	v := n.val
	s.mu.Unlock()
	return v, true
}

// remove deletes k if present. The entry leaves with ReasonRemoved.
func (s *shard[K, V]) remove(k K) bool {
	s.mu.Lock()
	n, ok := s.m[k]
	if !ok {
		s.mu.Unlock()
		return false
	}
	evs := s.evictLocked(nil, n, cache.ReasonRemoved)
	s.mu.Unlock()
	fire(evs)
	return true
}

// sweep evicts every entry whose deadline passed or whose token fired.
// Called by the janitor at its own cadence.
func (s *shard[K, V]) sweep() {
	s.mu.Lock()
	var evs []fired[K, V]
	for _, n := range s.m {
		if reason, dead := s.deadLocked(n); dead {
			evs = s.evictLocked(evs, n, reason)
		}
	}
	s.mu.Unlock()
	fire(evs)
}

func (s *shard[K, V]) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// -------------------- internals (mu held) --------------------

// deadLocked reports whether n is no longer servable and why.
// Token expiry is checked first: a token fire is a deliberate invalidation
// and should win over a racing TTL deadline.
func (s *shard[K, V]) deadLocked(n *node[K, V]) (cache.EvictionReason, bool) {
	if n.token != nil {
		select {
		case <-n.token:
			return cache.ReasonTokenExpired, true
		default:
		}
	}
	if n.exp != 0 && s.now() > n.exp {
		return cache.ReasonExpired, true
	}
	return cache.ReasonNone, false
}

func (s *shard[K, V]) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// evictLocked unlinks n and queues its callback for delivery after unlock.
func (s *shard[K, V]) evictLocked(evs []fired[K, V], n *node[K, V], reason cache.EvictionReason) []fired[K, V] {
	s.unlinkLocked(n)
	delete(s.m, n.key)
	if n.onEvict != nil {
		evs = append(evs, fired[K, V]{key: n.key, val: n.val, reason: reason, fn: n.onEvict})
	}
	return evs
}

func (s *shard[K, V]) pushFrontLocked(n *node[K, V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
}

func (s *shard[K, V]) moveToFrontLocked(n *node[K, V]) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *shard[K, V]) unlinkLocked(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
}

// fire delivers queued eviction notifications outside the shard lock,
// preserving the order entries left the cache.
func fire[K comparable, V any](evs []fired[K, V]) {
	for _, e := range evs {
		e.fn(e.key, e.val, e.reason)
	}
}
