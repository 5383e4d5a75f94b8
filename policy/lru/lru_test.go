package lru

import (
	"testing"

	"github.com/IvanBrykalov/recyclecache/policy"
)

// --- test doubles ---

type testCandidate struct {
	id      int
	recency int64
	busy    bool
}

func (c *testCandidate) Recency() int64 { return c.recency }
func (c *testCandidate) CanClose() bool { return !c.busy }

func ids(cs []policy.Candidate) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.(*testCandidate).id
	}
	return out
}

// --- tests ---

// Select must return the oldest entries first, regardless of snapshot order.
func TestLRU_Select_OldestFirst(t *testing.T) {
	t.Parallel()

	snap := []policy.Candidate{
		&testCandidate{id: 3, recency: -1},
		&testCandidate{id: 0, recency: -9},
		&testCandidate{id: 2, recency: -4},
		&testCandidate{id: 1, recency: -7},
	}
	got := ids(New().Select(snap, 2))
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("want [0 1], got %v", got)
	}
}

// Busy entries are skipped; the scan continues past them.
func TestLRU_Select_SkipsBusy(t *testing.T) {
	t.Parallel()

	snap := make([]policy.Candidate, 0, 10)
	for i := 0; i < 10; i++ {
		snap = append(snap, &testCandidate{id: i, recency: int64(i - 10), busy: i%2 == 1})
	}
	got := ids(New().Select(snap, 3))
	want := []int{0, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

// A busy oldest entry must not stop selection of idle ones behind it.
func TestLRU_Select_BusyHeadDoesNotBlock(t *testing.T) {
	t.Parallel()

	snap := []policy.Candidate{
		&testCandidate{id: 0, recency: -3, busy: true},
		&testCandidate{id: 1, recency: -2},
		&testCandidate{id: 2, recency: -1},
	}
	got := ids(New().Select(snap, 1))
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("want [1], got %v", got)
	}
}

// Ties keep snapshot order (stable sort).
func TestLRU_Select_StableOnTies(t *testing.T) {
	t.Parallel()

	snap := []policy.Candidate{
		&testCandidate{id: 5, recency: 0},
		&testCandidate{id: 6, recency: 0},
		&testCandidate{id: 7, recency: 0},
	}
	got := ids(New().Select(snap, 2))
	if got[0] != 5 || got[1] != 6 {
		t.Fatalf("want [5 6], got %v", got)
	}
}

// Nothing to do for an empty snapshot, a zero quota, or an all-busy snapshot.
func TestLRU_Select_Empty(t *testing.T) {
	t.Parallel()

	if got := New().Select(nil, 4); len(got) != 0 {
		t.Fatalf("empty snapshot: got %v", got)
	}
	snap := []policy.Candidate{&testCandidate{id: 1}}
	if got := New().Select(snap, 0); len(got) != 0 {
		t.Fatalf("zero quota: got %v", got)
	}
	busy := []policy.Candidate{&testCandidate{id: 1, busy: true}, &testCandidate{id: 2, busy: true}}
	if got := New().Select(busy, 2); len(got) != 0 {
		t.Fatalf("all busy: got %v", got)
	}
}
