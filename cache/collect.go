package cache

import (
	"context"

	"github.com/IvanBrykalov/recyclecache/policy"
	"github.com/sirupsen/logrus"
)

// Collect runs a partial collection and starts closing what it selected.
func (c *cache[K, V]) Collect() bool {
	if c.closed.Load() {
		return false
	}
	c.dir.lock()
	cy := c.collectLocked(false)
	c.dir.unlock()

	c.batch.start(cy)
	return cy != nil
}

// EndBatchCollect waits for the current cycle; call it without holding
// any cache lock, typically from a maintenance goroutine.
func (c *cache[K, V]) EndBatchCollect(ctx context.Context) error {
	return c.batch.wait(ctx)
}

// Abort force-releases resident and in-flight entries; the cache stays open.
func (c *cache[K, V]) Abort() { c.abort(false) }

// collectLocked moves victims from the directory into a new batch cycle and
// returns it, or nil if no collection was performed. The caller must start
// the cycle after releasing the exclusive lock.
//
// Partial: throttled by QuietWrites; selects at most quota idle entries,
// oldest first. Full: takes every entry, ignoring CanClose and the quota.
func (c *cache[K, V]) collectLocked(full bool) *cycle[K, V] {
	if c.batch.busy() {
		c.opt.Logger.Debug("cache: collection skipped, previous cycle still closing")
		return nil
	}

	total := len(c.dir.m)
	var victims []*node[K, V]
	reason := EvictCollected
	if full {
		victims = c.dir.drainLocked()
		reason = EvictDrained
	} else {
		if c.dir.writes <= c.opt.QuietWrites {
			return nil
		}
		victims = c.selectLocked(total)
		if len(victims) == 0 {
			c.opt.Logger.WithField("entries", total).Debug("cache: collection found no idle entries")
			return nil
		}
		for _, n := range victims {
			c.dir.remove(n.key)
		}
		c.dir.writes = 0
		c.dir.rememberLocked(victims)
	}

	c.stats.cycles.Inc()
	c.stats.collected.Add(int64(len(victims)))
	c.opt.Metrics.Cycle(len(victims), total)
	for range victims {
		c.opt.Metrics.Evict(reason)
	}
	c.opt.Metrics.Size(len(c.dir.m))
	c.opt.Logger.WithFields(logrus.Fields{
		"selected": len(victims),
		"total":    total,
		"reason":   reason.String(),
	}).Debug("cache: collection cycle")

	return c.batch.populate(victims)
}

// selectLocked normalizes recency and asks the policy for victims.
func (c *cache[K, V]) selectLocked(total int) []*node[K, V] {
	snap := c.dir.snapshotLocked()
	cands := make([]policy.Candidate, len(snap))
	for i, n := range snap {
		cands[i] = n
	}

	picked := c.opt.Policy.Select(cands, c.quota(total))
	victims := make([]*node[K, V], 0, len(picked))
	for _, p := range picked {
		victims = append(victims, p.(*node[K, V]))
	}
	return victims
}

// quota is max(1, floor(total * EvictFraction)). Floor, not ceil: 26 entries
// at 0.25 must yield 6 victims (a..f), and 100 must yield 25.
func (c *cache[K, V]) quota(total int) int {
	return max(1, int(float64(total)*c.opt.EvictFraction))
}

// abort moves every resident entry into the batch and force-releases the
// batch. With discard, the directory (including ghosts) is replaced too.
func (c *cache[K, V]) abort(discard bool) {
	c.dir.lock()
	victims := c.dir.drainLocked()
	n := c.batch.abort(victims)
	if discard {
		c.dir.m = make(map[K]*node[K, V])
		if c.dir.ghosts != nil {
			c.dir.ghosts.Purge()
		}
	}
	c.dir.unlock()

	if n == 0 {
		return
	}
	c.stats.aborted.Add(int64(n))
	for i := 0; i < n; i++ {
		c.opt.Metrics.Evict(EvictAborted)
	}
	c.opt.Metrics.Size(0)
	c.opt.Logger.WithField("aborted", n).Info("cache: aborted entries")
}
