// Package policy defines how a collection cycle picks its victims.
package policy

// Candidate is the minimal view of a directory entry a policy needs.
//
// Recency is a normalized ordinal: smaller means older. Values are only
// comparable within one snapshot.
type Candidate interface {
	Recency() int64
	// CanClose reports whether the entry is idle and may be released.
	CanClose() bool
}

// Policy selects up to quota candidates for collection.
//
// Semantics:
//   - Select is invoked under the cache's exclusive lock with a snapshot of
//     every resident entry; it may reorder the slice in place.
//   - Entries that report CanClose() == false must not be returned.
//   - Returned candidates must be elements of the snapshot; the cache
//     removes them from the directory and closes them.
//   - Returning an empty slice means "nothing collectible right now".
type Policy interface {
	Select(snapshot []Candidate, quota int) []Candidate
}

// Func adapts a plain function to Policy.
type Func func(snapshot []Candidate, quota int) []Candidate

// Select implements Policy.
func (f Func) Select(snapshot []Candidate, quota int) []Candidate { return f(snapshot, quota) }
