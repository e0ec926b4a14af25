package metered

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/rjmurillo/cachemetrics/cache"
)

var (
	// ErrClosed is returned by operations on a fully closed instance.
	ErrClosed = errors.New("metered: cache is closed")
	// ErrNilCache is returned by New when no cache is given to wrap.
	ErrNilCache = errors.New("metered: wrapped cache must not be nil")
	// ErrNilRegistry is returned by New when no Registry is given.
	ErrNilRegistry = errors.New("metered: registry must not be nil")
	// ErrDuplicateName is returned by New when the cache name is already
	// registered on the same Registry.
	ErrDuplicateName = errors.New("metered: duplicate cache name")
)

// Lifecycle states. Monotonic: Active → Closing → Closed, never back.
const (
	stateActive int32 = iota
	stateClosing
	stateClosed
)

// Options configures a decorator instance. The zero value is valid:
// an unnamed instance with no custom tags that leaves the wrapped cache
// open on Close.
type Options struct {
	// Name identifies this cache in every emitted reading (tag
	// "cache.name") and must be unique within the Registry. Optional, but
	// at most one unnamed instance may exist per Registry.
	Name string

	// Tags are static custom tags attached to every reading.
	Tags map[string]string

	// CloseWrapped closes the wrapped cache during Close, if it implements
	// io.Closer.
	CloseWrapped bool
}

// Cache decorates a cache.Cache with hit/miss/eviction counting. The
// wrapped cache's semantics are preserved: every operation delegates and
// returns the delegate's result unchanged, plus one atomic counter add.
type Cache[K comparable, V any] struct {
	inner cache.Cache[K, V]
	reg   *Registry
	pub   *publisher
	tags  *tagComposer
	name  string

	closeWrapped bool
	state        atomic.Int32

	bank counterBank
}

// New wraps inner with metric instrumentation published through reg's
// meter. Instruments are registered here, once; construction fails fast on
// a nil dependency or a duplicate cache name.
func New[K comparable, V any](inner cache.Cache[K, V], reg *Registry, opts Options) (*Cache[K, V], error) {
	if inner == nil {
		return nil, ErrNilCache
	}
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if err := reg.claim(opts.Name); err != nil {
		return nil, err
	}

	c := &Cache[K, V]{
		inner:        inner,
		reg:          reg,
		tags:         newTagComposer(opts.Name, opts.Tags),
		name:         opts.Name,
		closeWrapped: opts.CloseWrapped,
	}
	pub, err := newPublisher(reg.meter, &c.bank, c.tags)
	if err != nil {
		reg.release(opts.Name)
		return nil, err
	}
	c.pub = pub
	return c, nil
}

// Get delegates the lookup and counts the outcome: one atomic add for a
// hit or a miss, nothing else. Never blocks beyond the wrapped lookup.
func (c *Cache[K, V]) Get(k K) (V, bool, error) {
	if c.state.Load() == stateClosed {
		var zero V
		return zero, false, ErrClosed
	}
	v, ok := c.inner.Get(k)
	if ok {
		c.bank.hit()
	} else {
		c.bank.miss()
	}
	return v, ok, nil
}

// Set attaches a one-shot eviction notification to the entry and
// delegates. The caller's own OnEvict, if any, still fires after counting.
func (c *Cache[K, V]) Set(k K, v V, opts cache.EntryOptions[K, V]) error {
	if c.state.Load() == stateClosed {
		return ErrClosed
	}
	opts.OnEvict = c.chainEvict(opts.OnEvict)
	c.inner.Set(k, v, opts)
	return nil
}

// Remove delegates. The removal itself is not counted; the entry's
// eviction notification fires with ReasonRemoved, which the classifier
// excludes.
func (c *Cache[K, V]) Remove(k K) (bool, error) {
	if c.state.Load() == stateClosed {
		return false, ErrClosed
	}
	return c.inner.Remove(k), nil
}

// Stats returns a point-in-time snapshot of this instance's counters.
// Usable at any lifecycle stage; a closed instance reports its final
// counts.
func (c *Cache[K, V]) Stats() Stats {
	return c.bank.snapshot()
}

// Name returns the configured cache name ("" if unnamed).
func (c *Cache[K, V]) Name() string {
	return c.name
}

// Close tears the instance down exactly once: the poll registration is
// removed, the name is released back to the Registry, and the wrapped
// cache is closed if requested. Concurrent and repeated calls return nil
// without re-running teardown. Close takes no lock an eviction callback
// could also hold, so it cannot deadlock with evictions running on other
// goroutines.
func (c *Cache[K, V]) Close() error {
	if !c.state.CompareAndSwap(stateActive, stateClosing) {
		return nil
	}

	err := c.pub.unregister()
	c.reg.release(c.name)
	if c.closeWrapped {
		if closer, ok := c.inner.(io.Closer); ok {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	c.state.Store(stateClosed)
	return err
}

// chainEvict wraps the caller's callback with counting. The returned
// handler is the one the wrapped cache invokes — possibly from a janitor
// or compaction goroutine, possibly racing Close. It must therefore:
// tolerate a closed instance (the increment is skipped once teardown has
// finished; the bank memory itself stays valid), and never propagate a
// panic back into the wrapped cache's removal machinery.
func (c *Cache[K, V]) chainEvict(user cache.EvictionFunc[K, V]) cache.EvictionFunc[K, V] {
	return func(k K, v V, reason cache.EvictionReason) {
		defer func() {
			// Counting is fire-and-forget: a failure here must not fail
			// the cache operation that triggered the eviction.
			_ = recover()
		}()
		if counted(reason) && c.state.Load() != stateClosed {
			c.bank.evict(reason)
		}
		if user != nil {
			user(k, v, reason)
		}
	}
}
