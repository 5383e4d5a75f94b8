package cache

// Tx is an exclusive view of the directory, valid only inside Update.
// It must not be shared with other goroutines; any use after Update
// returns panics with ErrTxDone.
type Tx[K comparable, V Resource] struct {
	c     *cache[K, V]
	done  bool
	cycle *cycle[K, V] // started by Update once the lock is released
}

func (tx *Tx[K, V]) check() {
	if tx.done {
		panic(ErrTxDone)
	}
}

// Get returns the value for k without refreshing its recency.
func (tx *Tx[K, V]) Get(k K) (V, bool) {
	tx.check()
	n, ok := tx.c.dir.getLocked(k)
	if !ok {
		var zero V
		return zero, false
	}
	return n.val, true
}

// Add inserts k→v. It returns false if k is already resident.
func (tx *Tx[K, V]) Add(k K, v V) bool {
	tx.check()
	if _, ok := tx.c.dir.getLocked(k); ok {
		return false
	}
	tx.c.insertLocked(k, v)
	return true
}

// Remove deletes k and returns its value; the caller owns its cleanup.
func (tx *Tx[K, V]) Remove(k K) (V, bool) {
	tx.check()
	n, ok := tx.c.dir.remove(k)
	if !ok {
		var zero V
		return zero, false
	}
	tx.c.opt.Metrics.Evict(EvictRemoved)
	tx.c.opt.Metrics.Size(len(tx.c.dir.m))
	return n.val, true
}

// Len returns the number of resident entries.
func (tx *Tx[K, V]) Len() int {
	tx.check()
	return len(tx.c.dir.m)
}

// Collect runs a partial collection inside the scope. Closing starts when
// Update returns; at most one cycle can be started per scope.
func (tx *Tx[K, V]) Collect() bool {
	tx.check()
	if tx.cycle != nil {
		return false
	}
	tx.cycle = tx.c.collectLocked(false)
	return tx.cycle != nil
}
