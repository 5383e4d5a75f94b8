package cache

import (
	"context"

	"github.com/IvanBrykalov/recyclecache/policy"
	"github.com/IvanBrykalov/recyclecache/policy/lru"
	"github.com/sirupsen/logrus"
)

// Defaults applied by New for zero-valued Options fields.
const (
	DefaultEvictFraction   = 0.25
	DefaultQuietWrites     = 4
	DefaultInitialCapacity = 16
)

// EvictReason explains why an entry left the directory.
type EvictReason int

const (
	// EvictCollected — selected by a partial collection cycle.
	EvictCollected EvictReason = iota
	// EvictDrained — moved out by a full collection (graceful Close).
	EvictDrained
	// EvictAborted — force-released by Abort or Shutdown.
	EvictAborted
	// EvictRemoved — removed explicitly via Evict or Tx.Remove.
	EvictRemoved
)

// String returns a stable lowercase label for r.
func (r EvictReason) String() string {
	switch r {
	case EvictCollected:
		return "collected"
	case EvictDrained:
		return "drained"
	case EvictAborted:
		return "aborted"
	case EvictRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
// Hooks may be called from close-completion goroutines.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	// Cycle is reported once per performed collection: selected of total entries.
	Cycle(selected, total int)
	CloseFailed()
	Readmit()
	Size(entries int)
}

// Options configures the cache. Zero values are safe;
// defaults are applied in New():
//   - EvictFraction == 0   => 0.25
//   - QuietWrites == 0     => 4 (use a negative value to collect after every write)
//   - nil Policy           => approximate LRU (policy/lru)
//   - nil Metrics          => NoopMetrics
//   - nil Logger           => logrus.StandardLogger()
type Options[K comparable, V Resource] struct {
	// EvictFraction caps how much of the directory one partial collection
	// may select: max(1, floor(len * EvictFraction)). Must be in (0, 1].
	EvictFraction float64

	// QuietWrites is the number of inserts that must happen since the last
	// cycle before a partial collection is attempted.
	QuietWrites int

	// InitialCapacity pre-sizes the directory map.
	InitialCapacity int

	// GhostEntries bounds the set of recently collected keys remembered to
	// detect readmissions. 0 disables it.
	GhostEntries int

	// Policy orders and picks collection victims.
	Policy policy.Policy

	// Pressure, if set, is consulted by Put; when it reports true a partial
	// collection runs before the insert.
	Pressure func() bool

	// Factory builds a value on a GetOrCreate miss.
	Factory func(ctx context.Context, k K) (V, error)

	Metrics Metrics
	Logger  logrus.FieldLogger
}

func (o *Options[K, V]) applyDefaults() error {
	if o.EvictFraction == 0 {
		o.EvictFraction = DefaultEvictFraction
	}
	if o.EvictFraction < 0 || o.EvictFraction > 1 {
		return ErrInvalidFraction
	}
	switch {
	case o.QuietWrites == 0:
		o.QuietWrites = DefaultQuietWrites
	case o.QuietWrites < 0:
		// "always": any single write makes the directory eligible.
		o.QuietWrites = 0
	}
	if o.InitialCapacity <= 0 {
		o.InitialCapacity = DefaultInitialCapacity
	}
	if o.GhostEntries < 0 {
		return ErrInvalidGhostEntries
	}
	if o.Policy == nil {
		o.Policy = lru.New()
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return nil
}
