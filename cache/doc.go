// Package cache provides a generic cache of resource-owning values (open
// listeners, hosts, handles) whose idle entries are released in batches,
// asynchronously, without stalling lookups or double-closing a resource.
//
// Design
//
//   - Concurrency: one RWMutex guards the directory (map[K]*node). Get and
//     Touch take the shared lock and only bump an atomic access counter into
//     the node's recency. Put, Evict, selection and Abort take the exclusive
//     lock.
//
//   - Approximate LRU: there is no per-access list maintenance. A collection
//     cycle snapshots the directory, normalizes recency against the access
//     counter (then resets it), sorts oldest first and takes idle entries
//     (Resource.CanClose) up to max(1, floor(len*EvictFraction)). Busy entries
//     are skipped, never stop the scan. The result is "oldest first among
//     closable entries", which is the contract, not strict LRU.
//
//   - Throttling: a partial collection only runs once more than QuietWrites
//     inserts happened since the previous cycle, and never while the
//     previous cycle still has closes outstanding.
//
//   - Batches: selected entries leave the directory under the lock, then
//     their closes start after it is released. Each close completes inline
//     or on another goroutine; an atomic countdown fires the cycle's
//     completion signal exactly once. EndBatchCollect waits on it.
//
//   - Abort/Shutdown: force-release everything, including entries whose
//     graceful close is still in flight; the completion signal is set so no
//     waiter deadlocks. No resource is ever closed twice by the cache.
//
//   - Failures: errors and panics from a resource are logged (logrus) and
//     counted (Metrics.CloseFailed), never returned to the collector.
//
// Basic usage
//
//	c, err := cache.New[string, *resource.Handle[net.Listener]](
//	    cache.Options[string, *resource.Handle[net.Listener]]{})
//	if err != nil {
//	    return err
//	}
//	_ = c.Put("svc-a", resource.New(ln))
//	if h, ok := c.Get("svc-a"); ok {
//	    _ = h // use value
//	}
//
// Maintenance
//
//	// Typically run from a background task (see package maintenance).
//	if c.Collect() {
//	    ctx, cancel := context.WithTimeout(ctx, time.Minute)
//	    defer cancel()
//	    _ = c.EndBatchCollect(ctx)
//	}
//
// Writer scope
//
//	err := c.Update(func(tx *cache.Tx[string, *resource.Handle[net.Listener]]) error {
//	    if old, ok := tx.Get("svc-a"); ok && old.Failed() {
//	        tx.Remove("svc-a")
//	        old.Abort()
//	    }
//	    tx.Add("svc-a", resource.New(ln))
//	    return nil
//	})
//
// Thread-safety & complexity
//
// Get/Touch are O(1) under a shared lock. Put/Evict are O(1) under the
// exclusive lock. A collection cycle is O(n log n) under the exclusive lock
// for the snapshot and sort; closing is outside it.
package cache
