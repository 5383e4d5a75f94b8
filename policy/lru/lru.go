// Package lru implements the default approximate-LRU collection policy.
package lru

import (
	"slices"

	"github.com/IvanBrykalov/recyclecache/policy"
)

// lru orders a snapshot oldest-first and takes idle entries until the quota
// is met. Busy entries are skipped rather than ending the scan, so an old
// busy entry never shields the idle entries behind it.
//
// The result is "oldest first among closable entries", not strict LRU:
// recency bumps race with each other and busy entries keep their slot.
type lru struct{}

// New returns the approximate-LRU policy.
func New() policy.Policy { return lru{} }

// Select sorts snapshot in place (stable, ascending recency) and returns
// up to quota closable candidates.
func (lru) Select(snapshot []policy.Candidate, quota int) []policy.Candidate {
	if quota <= 0 || len(snapshot) == 0 {
		return nil
	}
	slices.SortStableFunc(snapshot, func(a, b policy.Candidate) int {
		ra, rb := a.Recency(), b.Recency()
		switch {
		case ra < rb:
			return -1
		case ra > rb:
			return 1
		default:
			return 0
		}
	})

	picked := make([]policy.Candidate, 0, min(quota, len(snapshot)))
	for _, c := range snapshot {
		if len(picked) == quota {
			break
		}
		if !c.CanClose() {
			continue
		}
		picked = append(picked, c)
	}
	return picked
}
