package cache

import "sync/atomic"

// node is a directory entry: the caller's resource plus the recency ordinal
// used by collection. A node lives in the directory or in exactly one batch
// cycle, never both.
type node[K comparable, V Resource] struct {
	key K
	val V

	// Set from the directory access counter on insert and on every hit.
	// Readers store it under the shared lock, so concurrent bumps are
	// last-write-wins; collection rewrites it under the exclusive lock.
	recency atomic.Int64

	// Set once the node's close finalized or it was aborted.
	released atomic.Bool
}

func newNode[K comparable, V Resource](k K, v V) *node[K, V] {
	return &node[K, V]{key: k, val: v}
}

// Recency returns the node's ordinal (part of policy.Candidate).
func (n *node[K, V]) Recency() int64 { return n.recency.Load() }

// CanClose delegates to the resource (part of policy.Candidate).
func (n *node[K, V]) CanClose() bool { return n.val.CanClose() }
