// Package resource adapts plain io.Closer values (listeners, connections,
// files) to the cache.Resource capability set.
package resource

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/recyclecache/cache"
)

// ErrClosing is returned by Acquire once a close has begun.
var ErrClosing = errors.New("resource: closing")

// Handle owns one io.Closer and tracks how many callers are using it.
// A handle is closable when nobody holds it, or when it has been marked
// failed. The graceful close refuses new Acquires at once but waits for
// outstanding ones to be released (or for Fail) before closing. The
// underlying Close runs at most once, whichever of the graceful path or
// Abort gets there first; Abort never waits for a close in flight.
type Handle[T io.Closer] struct {
	res    T
	onBusy func()

	mu      sync.Mutex
	idle    *sync.Cond // signalled when busy drops to 0, on Fail and on Abort
	busy    int
	closing bool
	failure error

	started  atomic.Bool
	done     chan struct{} // closed once the underlying Close returned
	closeErr error
}

// Option configures a Handle.
type Option func(*options)

type options struct {
	onBusy func()
}

// WithOnBusy registers fn to be called on every successful Acquire,
// typically to refresh the owning cache entry (cache.Touch).
func WithOnBusy(fn func()) Option {
	return func(o *options) { o.onBusy = fn }
}

// New wraps res.
func New[T io.Closer](res T, opts ...Option) *Handle[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	h := &Handle[T]{res: res, onBusy: o.onBusy, done: make(chan struct{})}
	h.idle = sync.NewCond(&h.mu)
	return h
}

// Value returns the wrapped resource.
func (h *Handle[T]) Value() T { return h.res }

// Acquire marks the handle in use. Every successful Acquire must be paired
// with Release.
func (h *Handle[T]) Acquire() error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return ErrClosing
	}
	h.busy++
	h.mu.Unlock()

	if h.onBusy != nil {
		h.onBusy()
	}
	return nil
}

// Release undoes one Acquire.
func (h *Handle[T]) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.busy == 0 {
		panic("resource: Release without Acquire")
	}
	h.busy--
	if h.busy == 0 {
		h.idle.Broadcast()
	}
}

// Busy returns the number of outstanding Acquires.
func (h *Handle[T]) Busy() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.busy
}

// Fail marks the handle broken; it becomes closable even while in use.
func (h *Handle[T]) Fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failure == nil {
		h.failure = err
	}
	h.idle.Broadcast()
}

// Failed reports whether Fail was called.
func (h *Handle[T]) Failed() bool { return h.Err() != nil }

// Err returns the error passed to Fail, if any.
func (h *Handle[T]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failure
}

// Closed reports whether the underlying resource has been closed.
func (h *Handle[T]) Closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// CanClose implements cache.Resource.
func (h *Handle[T]) CanClose() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failure != nil || h.busy == 0
}

// BeginClose implements cache.Resource. New Acquires are refused from here
// on. The underlying Close runs on its own goroutine once every earlier
// Acquire has been released, unless the handle failed or was aborted.
func (h *Handle[T]) BeginClose() (cache.Closing, error) {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()
	return cache.Go(func() error {
		h.mu.Lock()
		for h.busy > 0 && h.failure == nil && !h.started.Load() {
			h.idle.Wait()
		}
		h.mu.Unlock()
		h.closeOnce()
		<-h.done
		return h.closeErr
	}), nil
}

// EndClose implements cache.Resource and reports the Close error.
func (h *Handle[T]) EndClose(c cache.Closing) error {
	if f, ok := c.(*cache.Future); ok {
		return f.Err()
	}
	<-c.Done()
	<-h.done
	return h.closeErr
}

// Abort implements cache.Resource: it closes synchronously unless a close
// was already started.
func (h *Handle[T]) Abort() {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()
	h.closeOnce()

	// Wake a graceful close parked on busy holders.
	h.mu.Lock()
	h.idle.Broadcast()
	h.mu.Unlock()
}

// Close closes the handle outside of any cache, e.g. after cache.Evict,
// and waits for the underlying Close.
func (h *Handle[T]) Close() error {
	h.Abort()
	<-h.done
	return h.closeErr
}

func (h *Handle[T]) closeOnce() {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	h.closeErr = h.res.Close()
	close(h.done)
}

var _ cache.Resource = (*Handle[io.Closer])(nil)
