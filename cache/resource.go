package cache

// Resource is the capability set every cached value must implement.
// The cache owns the value from Put until it is handed to a collection
// batch, an explicit Evict, or Shutdown.
type Resource interface {
	// CanClose reports whether the value is idle and may be released.
	// It is called under the cache's exclusive lock; keep it cheap.
	CanClose() bool

	// BeginClose starts a graceful release. A nil Closing means the close
	// already completed. It is invoked at most once per collection cycle.
	BeginClose() (Closing, error)

	// EndClose finalizes a close previously started by BeginClose.
	// It is called exactly once for every non-nil Closing.
	EndClose(Closing) error

	// Abort releases the value immediately. It may run while a graceful
	// close of the same value is still in flight.
	Abort()
}

// Closing is a close operation in progress.
// Done is closed once the underlying release has finished.
type Closing interface {
	Done() <-chan struct{}
}

// Future is a ready-made Closing backed by a goroutine.
type Future struct {
	done chan struct{}
	err  error
}

// Go runs fn on a new goroutine and returns a Future that completes with its result.
func Go(fn func() error) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.err = fn()
	}()
	return f
}

// Completed returns a Future that is already done with err.
func Completed(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done implements Closing.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err blocks until the future completes and returns fn's error.
func (f *Future) Err() error {
	<-f.done
	return f.err
}

// isDone reports whether c has already completed, without blocking.
func isDone(c Closing) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}
