package util

import (
	"sync"
	"testing"
	"unsafe"
)

func TestCounter_SizeIsOneCacheLine(t *testing.T) {
	t.Parallel()

	if got := unsafe.Sizeof(Counter{}); got != CacheLineSize {
		t.Fatalf("Counter size = %d, want %d", got, CacheLineSize)
	}
}

func TestCounter_ConcurrentInc(t *testing.T) {
	t.Parallel()

	var c Counter
	const workers, perWorker = 8, 1000
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	if got := c.Load(); got != workers*perWorker {
		t.Fatalf("got %d, want %d", got, workers*perWorker)
	}
}
