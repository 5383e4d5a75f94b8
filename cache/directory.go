package cache

import (
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/recyclecache/internal/util"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// directory is the key->node mapping plus the counters collection needs.
//
// Lookups run under the shared lock and touch nothing but the access counter
// and the hit node's recency. Every other access requires the exclusive lock;
// methods with a "Locked" suffix or that mutate assert it.
type directory[K comparable, V Resource] struct {
	// ---- guarded by mu ----
	mu      sync.RWMutex
	writing atomic.Bool // true while mu is held exclusively
	m       map[K]*node[K, V]
	writes  int                         // inserts since the last performed cycle
	ghosts  *simplelru.LRU[K, struct{}] // recently collected keys; nil if disabled

	// ---- bumped by readers under the shared lock ----
	_      util.CacheLinePad
	access util.Counter
}

func newDirectory[K comparable, V Resource](capacity, ghosts int) (*directory[K, V], error) {
	d := &directory[K, V]{m: make(map[K]*node[K, V], capacity)}
	if ghosts > 0 {
		g, err := simplelru.NewLRU[K, struct{}](ghosts, nil)
		if err != nil {
			return nil, err
		}
		d.ghosts = g
	}
	return d, nil
}

func (d *directory[K, V]) lock() {
	d.mu.Lock()
	d.writing.Store(true)
}

func (d *directory[K, V]) unlock() {
	d.writing.Store(false)
	d.mu.Unlock()
}

// mustHoldLock is a best-effort check: it catches mutations made while no
// writer holds the lock, not mutations racing with some other writer.
func (d *directory[K, V]) mustHoldLock() {
	if !d.writing.Load() {
		panic(ErrNotLocked)
	}
}

// lookup returns the node for k and refreshes its recency on a hit.
func (d *directory[K, V]) lookup(k K) (*node[K, V], bool) {
	d.mu.RLock()
	n, ok := d.m[k]
	if ok {
		n.recency.Store(d.access.Inc())
	}
	d.mu.RUnlock()
	return n, ok
}

// touch refreshes k's recency without returning it.
func (d *directory[K, V]) touch(k K) bool {
	_, ok := d.lookup(k)
	return ok
}

// getLocked returns the node for k without refreshing recency.
func (d *directory[K, V]) getLocked(k K) (*node[K, V], bool) {
	d.mustHoldLock()
	n, ok := d.m[k]
	return n, ok
}

// insert adds n (whose key must be absent) and stamps its recency.
// It reports whether the key was a recently collected ghost.
func (d *directory[K, V]) insert(n *node[K, V]) (readmit bool) {
	d.mustHoldLock()
	n.recency.Store(d.access.Inc())
	d.m[n.key] = n
	d.writes++
	if d.ghosts != nil {
		readmit = d.ghosts.Remove(n.key)
	}
	return readmit
}

// remove deletes k if present. Absent keys are a no-op: collection and an
// explicit evict may both try to remove the same entry.
func (d *directory[K, V]) remove(k K) (*node[K, V], bool) {
	d.mustHoldLock()
	n, ok := d.m[k]
	if !ok {
		return nil, false
	}
	delete(d.m, k)
	return n, true
}

// snapshotLocked returns every node with recency normalized against the
// access counter, then resets the counter to zero.
//
// Normalization uses wrapping int64 subtraction: as long as the live spread
// of recency values stays below 2^63, relative order survives a counter
// that overflowed since the last cycle. After the reset, new stamps start at
// 1 and sort after every normalized (<= 0) value.
func (d *directory[K, V]) snapshotLocked() []*node[K, V] {
	d.mustHoldLock()
	now := d.access.Load()
	out := make([]*node[K, V], 0, len(d.m))
	for _, n := range d.m {
		n.recency.Store(n.recency.Load() - now)
		out = append(out, n)
	}
	d.access.Store(0)
	return out
}

// drainLocked removes and returns every node.
func (d *directory[K, V]) drainLocked() []*node[K, V] {
	d.mustHoldLock()
	out := make([]*node[K, V], 0, len(d.m))
	for _, n := range d.m {
		out = append(out, n)
	}
	clear(d.m)
	d.writes = 0
	return out
}

// rememberLocked records collected keys in the ghost set.
func (d *directory[K, V]) rememberLocked(nodes []*node[K, V]) {
	d.mustHoldLock()
	if d.ghosts == nil {
		return
	}
	for _, n := range nodes {
		d.ghosts.Add(n.key, struct{}{})
	}
}

func (d *directory[K, V]) size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.m)
}
