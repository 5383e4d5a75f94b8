package cache

import "context"

// Cache is a keyed cache of resource-owning values with batched,
// asynchronous release of idle entries.
// All methods are safe for concurrent use by multiple goroutines.
//
// Reads take a shared lock and only refresh an approximate recency ordinal.
// Writes, selection and abort take the exclusive lock. Closing selected
// entries happens outside the lock; EndBatchCollect is the only call that
// waits for it.
type Cache[K comparable, V Resource] interface {
	// Get returns the value for k and a boolean flag indicating presence.
	// On hit, the entry's recency is refreshed.
	Get(k K) (V, bool)

	// Touch marks k as recently used without returning it.
	// Returns false if k is not resident.
	Touch(k K) bool

	// Put inserts k→v. If Options.Pressure reports pressure, a partial
	// collection runs first. Returns ErrKeyExists if k is resident and
	// ErrClosed after Shutdown or Close.
	Put(k K, v V) error

	// Evict removes k immediately and hands its value back to the caller,
	// who is responsible for releasing it. The batch is not involved.
	Evict(k K) (V, bool)

	// GetOrCreate returns the value for k, building it via Options.Factory
	// on miss. Concurrent creators of the same key are coalesced.
	// If no Factory was configured, returns ErrNoFactory.
	GetOrCreate(ctx context.Context, k K) (V, error)

	// Update runs fn with exclusive access to the directory.
	// The Tx must not be used after fn returns.
	Update(fn func(tx *Tx[K, V]) error) error

	// Collect runs a partial collection cycle and starts closing the
	// selected entries. It reports false when nothing was collected: too few
	// writes since the last cycle, a previous cycle still closing, or no
	// idle entries.
	Collect() bool

	// EndBatchCollect waits until every close of the current cycle finished,
	// then clears it. It returns immediately if no cycle is outstanding and
	// ctx.Err() if ctx ends first.
	EndBatchCollect(ctx context.Context) error

	// Abort force-releases every resident entry and every entry of the
	// current cycle without waiting. The cache stays usable.
	Abort()

	// Shutdown marks the cache closed, aborts everything and discards the
	// directory. It is idempotent.
	Shutdown()

	// Close marks the cache closed and gracefully closes every entry,
	// waiting for completion. If ctx ends first, it falls back to Shutdown
	// and returns ctx.Err().
	Close(ctx context.Context) error

	// Len returns the number of resident entries.
	Len() int

	// Stats returns a snapshot of the cache counters.
	Stats() Stats
}
