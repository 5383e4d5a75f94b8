// Package util contains internal helpers shared by the cache packages.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// CacheLinePad separates hot fields into distinct cache lines.
// Place it between a lock and counters that readers bump without it.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// Counter is an atomic int64 padded to exactly one cache line.
// Readers on the shared-lock path bump several of these concurrently;
// padding keeps them from invalidating each other's lines.
type Counter struct {
	atomic.Int64
	_ [CacheLineSize - 8]byte
}

// Inc adds one and returns the new value.
func (c *Counter) Inc() int64 { return c.Add(1) }

// Compile-time size check (must be exactly one cache line).
var _ [CacheLineSize - int(unsafe.Sizeof(Counter{}))]byte
