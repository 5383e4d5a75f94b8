package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/IvanBrykalov/recyclecache/internal/singleflight"
)

// cache composes the directory and the batch.
// All methods are safe for concurrent use by multiple goroutines.
type cache[K comparable, V Resource] struct {
	dir    *directory[K, V]
	batch  *batch[K, V]
	closed atomic.Bool

	opt   Options[K, V]
	stats counters

	// singleflight group for coalescing concurrent creates in GetOrCreate.
	sf singleflight.Group[K, V]
}

// New constructs a cache with the provided Options.
// Defaults:
//   - EvictFraction == 0 -> 0.25
//   - QuietWrites == 0   -> 4
//   - nil Policy         -> approximate LRU
//   - nil Metrics        -> NoopMetrics
//   - nil Logger         -> logrus.StandardLogger()
func New[K comparable, V Resource](opt Options[K, V]) (Cache[K, V], error) {
	if err := opt.applyDefaults(); err != nil {
		return nil, err
	}
	dir, err := newDirectory[K, V](opt.InitialCapacity, opt.GhostEntries)
	if err != nil {
		return nil, fmt.Errorf("cache: ghost set: %w", err)
	}

	c := &cache[K, V]{
		dir: dir,
		opt: opt,
	}
	c.batch = &batch[K, V]{
		metrics: opt.Metrics,
		log:     opt.Logger,
		stats:   &c.stats,
	}
	return c, nil
}

// ---- Cache[K,V] implementation ----

// Get returns the value for k and a presence flag.
func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	n, ok := c.dir.lookup(k)
	if !ok {
		c.stats.misses.Inc()
		c.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	c.stats.hits.Inc()
	c.opt.Metrics.Hit()
	return n.val, true
}

// Touch refreshes k's recency.
func (c *cache[K, V]) Touch(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.dir.touch(k)
}

// Put inserts k→v, collecting first if the pressure hook asks for it.
func (c *cache[K, V]) Put(k K, v V) error {
	if c.closed.Load() {
		return ErrClosed
	}

	var cy *cycle[K, V]
	c.dir.lock()
	// Shutdown flips closed before taking the lock; re-check so nothing
	// lands in a discarded directory.
	if c.closed.Load() {
		c.dir.unlock()
		return ErrClosed
	}
	if _, ok := c.dir.getLocked(k); ok {
		c.dir.unlock()
		return ErrKeyExists
	}
	if p := c.opt.Pressure; p != nil && p() {
		cy = c.collectLocked(false)
	}
	c.insertLocked(k, v)
	c.dir.unlock()

	c.batch.start(cy)
	return nil
}

// Evict removes k and returns its value for synchronous cleanup by the caller.
func (c *cache[K, V]) Evict(k K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	c.dir.lock()
	n, ok := c.dir.remove(k)
	size := len(c.dir.m)
	c.dir.unlock()
	if !ok {
		return zero, false
	}
	c.opt.Metrics.Evict(EvictRemoved)
	c.opt.Metrics.Size(size)
	return n.val, true
}

// GetOrCreate returns the value for k; on miss it builds one via
// Options.Factory, coalescing concurrent creates for the same key.
func (c *cache[K, V]) GetOrCreate(ctx context.Context, k K) (V, error) {
	// fast path
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Factory == nil {
		var zero V
		return zero, ErrNoFactory
	}

	return c.sf.Do(ctx, k, func() (V, error) {
		// double-check after flight join; the miss is already counted
		if n, ok := c.dir.lookup(k); ok {
			return n.val, nil
		}
		v, err := c.opt.Factory(ctx, k)
		if err != nil {
			return v, err
		}
		err = c.Put(k, v)
		if err == nil {
			return v, nil
		}

		// Lost to a direct Put (or the cache closed): the fresh value
		// never became visible, so release it here.
		c.release(k, v)
		if errors.Is(err, ErrKeyExists) {
			if n, ok := c.dir.lookup(k); ok {
				return n.val, nil
			}
		}
		var zero V
		return zero, err
	})
}

// Update runs fn under the exclusive lock.
func (c *cache[K, V]) Update(fn func(tx *Tx[K, V]) error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	tx := &Tx[K, V]{c: c}

	// Deferred in this order so the cycle starts after the lock is released,
	// even if fn panics.
	defer func() { c.batch.start(tx.cycle) }()
	c.dir.lock()
	defer func() {
		tx.done = true
		c.dir.unlock()
	}()

	if c.closed.Load() {
		return ErrClosed
	}
	return fn(tx)
}

// Shutdown marks the cache closed, aborts everything and discards the directory.
func (c *cache[K, V]) Shutdown() {
	c.closed.Store(true)
	c.abort(true)
}

// Close drains the cache gracefully; see Cache.Close.
func (c *cache[K, V]) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	for {
		// Let any outstanding cycle finish first; collections never overlap.
		if err := c.batch.wait(ctx); err != nil {
			c.abort(true)
			return fmt.Errorf("cache: close: %w", err)
		}
		c.dir.lock()
		if c.batch.busy() {
			c.dir.unlock()
			continue
		}
		cy := c.collectLocked(true)
		c.dir.unlock()
		c.batch.start(cy)
		break
	}

	if err := c.batch.wait(ctx); err != nil {
		c.abort(true)
		return fmt.Errorf("cache: close: %w", err)
	}
	c.opt.Logger.Debug("cache: drained")
	return nil
}

// Len returns the number of resident entries.
func (c *cache[K, V]) Len() int { return c.dir.size() }

// Stats returns a snapshot of the cache counters.
func (c *cache[K, V]) Stats() Stats {
	return Stats{
		Hits:          c.stats.hits.Load(),
		Misses:        c.stats.misses.Load(),
		Cycles:        c.stats.cycles.Load(),
		Collected:     c.stats.collected.Load(),
		Aborted:       c.stats.aborted.Load(),
		CloseFailures: c.stats.closeFailures.Load(),
		Readmits:      c.stats.readmits.Load(),
		Entries:       c.dir.size(),
		Pending:       c.batch.pending(),
	}
}

// ---- helpers ----

// insertLocked adds a new node for k. The key must be absent.
func (c *cache[K, V]) insertLocked(k K, v V) {
	if c.dir.insert(newNode(k, v)) {
		c.stats.readmits.Inc()
		c.opt.Metrics.Readmit()
	}
	c.opt.Metrics.Size(len(c.dir.m))
}

// release force-closes a value that never entered the directory.
func (c *cache[K, V]) release(k K, v V) {
	if err := safely(func() error { v.Abort(); return nil }); err != nil {
		c.stats.closeFailures.Inc()
		c.opt.Metrics.CloseFailed()
		c.opt.Logger.WithField("key", k).WithError(err).Warn("cache: abort of discarded value failed")
	}
}
