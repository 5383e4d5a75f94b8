package cache

import "github.com/IvanBrykalov/recyclecache/internal/util"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Cycles        int64 // performed collection cycles (partial and full)
	Collected     int64 // entries handed to a batch for graceful close
	Aborted       int64 // entries force-released
	CloseFailures int64
	Readmits      int64 // Puts of keys that were recently collected
	Entries       int   // resident entries
	Pending       int   // closes still outstanding in the current cycle
}

// counters are the hot, padded counters behind Stats.
type counters struct {
	hits          util.Counter
	misses        util.Counter
	cycles        util.Counter
	collected     util.Counter
	aborted       util.Counter
	closeFailures util.Counter
	readmits      util.Counter
}
