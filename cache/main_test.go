package cache

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// closeMode selects how a fakeRes completes BeginClose.
type closeMode int

const (
	closeSync      closeMode = iota // BeginClose returns a nil Closing
	closeCompleted                  // BeginClose returns an already-done Closing
	closeAsync                      // completes when the test calls finish()
)

// fakeRes is a Resource that records every capability call.
type fakeRes struct {
	name string
	mode closeMode

	busy         atomic.Bool
	beginErr     error
	endErr       error
	panicOnBegin bool
	onBegin      func() // runs inside BeginClose, before it returns

	gate     chan struct{}
	gateOnce sync.Once

	begins atomic.Int32
	ends   atomic.Int32
	aborts atomic.Int32
}

func newFake(name string, mode closeMode) *fakeRes {
	return &fakeRes{name: name, mode: mode, gate: make(chan struct{})}
}

func (f *fakeRes) CanClose() bool { return !f.busy.Load() }

func (f *fakeRes) BeginClose() (Closing, error) {
	f.begins.Add(1)
	if f.onBegin != nil {
		f.onBegin()
	}
	if f.panicOnBegin {
		panic("boom")
	}
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	switch f.mode {
	case closeSync:
		return nil, nil
	case closeCompleted:
		return Completed(f.endErr), nil
	default:
		return Go(func() error {
			<-f.gate
			return f.endErr
		}), nil
	}
}

func (f *fakeRes) EndClose(c Closing) error {
	f.ends.Add(1)
	if fu, ok := c.(*Future); ok {
		return fu.Err()
	}
	return nil
}

func (f *fakeRes) Abort() { f.aborts.Add(1) }

// finish lets a pending async close complete.
func (f *fakeRes) finish() { f.gateOnce.Do(func() { close(f.gate) }) }

// newTestCache builds a cache with a silent logger and shuts it down on cleanup.
func newTestCache(t testing.TB, opt Options[string, *fakeRes]) (*cache[string, *fakeRes], *logtest.Hook) {
	t.Helper()
	var hook *logtest.Hook
	if opt.Logger == nil {
		var l *logrus.Logger
		l, hook = logtest.NewNullLogger()
		l.SetLevel(logrus.DebugLevel)
		opt.Logger = l
	}
	c, err := New[string, *fakeRes](opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Shutdown)
	return c.(*cache[string, *fakeRes]), hook
}

// newTestBatch builds a standalone batch with a silent logger.
func newTestBatch() (*batch[string, *fakeRes], *counters, *logtest.Hook) {
	l, hook := logtest.NewNullLogger()
	l.SetOutput(io.Discard)
	st := &counters{}
	return &batch[string, *fakeRes]{metrics: NoopMetrics{}, log: l, stats: st}, st, hook
}

func nodesOf(fs ...*fakeRes) []*node[string, *fakeRes] {
	out := make([]*node[string, *fakeRes], len(fs))
	for i, f := range fs {
		out[i] = newNode(f.name, f)
	}
	return out
}

func finishAll(fs ...*fakeRes) {
	for _, f := range fs {
		f.finish()
	}
}

// warnings counts logged entries at Warn level or above.
func warnings(h *logtest.Hook) int {
	n := 0
	for _, e := range h.AllEntries() {
		if e.Level <= logrus.WarnLevel {
			n++
		}
	}
	return n
}
