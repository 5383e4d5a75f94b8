package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// cycle is one round of closes. Every collection gets a fresh cycle, so a
// straggling completion from an aborted round can only ever decrement its
// own counter.
type cycle[K comparable, V Resource] struct {
	nodes     []*node[K, V]
	remaining atomic.Int64
	done      chan struct{}
	once      sync.Once

	started bool // guarded by batch.mu
	aborted atomic.Bool
}

func newCycle[K comparable, V Resource](nodes []*node[K, V]) *cycle[K, V] {
	cy := &cycle[K, V]{nodes: nodes, done: make(chan struct{})}
	cy.remaining.Store(int64(len(nodes)))
	if len(nodes) == 0 {
		cy.finish()
	}
	return cy
}

// finish fires the completion signal; safe to call any number of times.
func (cy *cycle[K, V]) finish() { cy.once.Do(func() { close(cy.done) }) }

// release counts one finished close. Exactly one caller observes zero.
func (cy *cycle[K, V]) release() {
	if cy.remaining.Add(-1) == 0 {
		cy.finish()
	}
}

func (cy *cycle[K, V]) finished() bool {
	select {
	case <-cy.done:
		return true
	default:
		return false
	}
}

// batch owns the close lifecycle of nodes removed from the directory.
// It holds at most one current cycle; the cache's exclusive lock serializes
// population, and mu guards the handoff to closers and waiters.
type batch[K comparable, V Resource] struct {
	mu  sync.Mutex
	cur *cycle[K, V]

	metrics Metrics
	log     logrus.FieldLogger
	stats   *counters
}

// busy reports whether a cycle still has closes outstanding.
// A cycle that already finished is reaped here, so nobody is forced to call
// EndBatchCollect before the next collection may run.
func (b *batch[K, V]) busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur != nil && b.cur.finished() {
		b.cur = nil
	}
	return b.cur != nil
}

// populate installs nodes as the current cycle. The caller holds the
// directory's exclusive lock and has checked busy().
func (b *batch[K, V]) populate(nodes []*node[K, V]) *cycle[K, V] {
	b.mu.Lock()
	defer b.mu.Unlock()
	cy := newCycle(nodes)
	b.cur = cy
	return cy
}

// start begins closing every node of cy. It is a no-op if cy was aborted
// or superseded before the caller got here. BeginClose runs without b.mu
// held; an abort racing the loop stops it, and nodes already released are
// skipped by abort.
func (b *batch[K, V]) start(cy *cycle[K, V]) {
	if cy == nil {
		return
	}
	b.mu.Lock()
	if b.cur != cy || cy.started || cy.aborted.Load() {
		b.mu.Unlock()
		return
	}
	cy.started = true
	b.mu.Unlock()

	for _, n := range cy.nodes {
		if cy.aborted.Load() {
			return
		}
		b.closeNode(cy, n)
	}
}

func (b *batch[K, V]) closeNode(cy *cycle[K, V], n *node[K, V]) {
	var pending Closing
	err := safely(func() (err error) {
		pending, err = n.val.BeginClose()
		return err
	})
	if err != nil {
		// Count-based completion: a failed start still counts as closed.
		b.fail(n, "begin", err)
		b.finalize(cy, n)
		return
	}
	if pending == nil {
		b.finalize(cy, n)
		return
	}
	if isDone(pending) {
		b.end(n, pending)
		b.finalize(cy, n)
		return
	}
	go func() {
		<-pending.Done()
		b.end(n, pending)
		b.finalize(cy, n)
	}()
}

func (b *batch[K, V]) end(n *node[K, V], pending Closing) {
	if err := safely(func() error { return n.val.EndClose(pending) }); err != nil {
		b.fail(n, "end", err)
	}
}

func (b *batch[K, V]) finalize(cy *cycle[K, V], n *node[K, V]) {
	n.released.Store(true)
	cy.release()
}

func (b *batch[K, V]) fail(n *node[K, V], op string, err error) {
	b.stats.closeFailures.Inc()
	b.metrics.CloseFailed()
	b.log.WithFields(logrus.Fields{"key": n.key, "op": op}).WithError(err).Warn("cache: resource close failed")
}

// abort force-releases every node of the current cycle plus extra, sets the
// completion signal and clears the batch. Nodes whose graceful close already
// finished are not aborted again. It returns the number of aborted nodes.
func (b *batch[K, V]) abort(extra []*node[K, V]) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var nodes []*node[K, V]
	if cy := b.cur; cy != nil {
		cy.aborted.Store(true)
		nodes = append(nodes, cy.nodes...)
		defer cy.finish()
	}
	nodes = append(nodes, extra...)
	b.cur = nil

	aborted := 0
	for _, n := range nodes {
		if n.released.Load() {
			continue
		}
		if err := safely(func() error { n.val.Abort(); return nil }); err != nil {
			b.fail(n, "abort", err)
		}
		n.released.Store(true)
		aborted++
	}
	return aborted
}

// wait blocks until the current cycle completes or ctx ends, then clears it.
func (b *batch[K, V]) wait(ctx context.Context) error {
	b.mu.Lock()
	cy := b.cur
	b.mu.Unlock()
	if cy == nil {
		return nil
	}

	select {
	case <-cy.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.mu.Lock()
	if b.cur == cy {
		b.cur = nil
	}
	b.mu.Unlock()
	return nil
}

// pending returns the number of closes still outstanding.
func (b *batch[K, V]) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return 0
	}
	return int(max(b.cur.remaining.Load(), 0))
}

// safely runs fn, turning a panic into an error so one misbehaving
// resource cannot take down the collection or its caller.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache: resource panic: %v", r)
		}
	}()
	return fn()
}
