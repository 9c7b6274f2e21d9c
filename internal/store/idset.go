package store

import "sort"

// IDSet is an ordered set of entity ids. Iteration is always ascending, which
// keeps every index lookup deterministic across runs.
type IDSet struct {
	members map[int64]struct{}
	sorted  []int64
	dirty   bool
}

// NewIDSet creates an empty set.
func NewIDSet() *IDSet {
	return &IDSet{members: make(map[int64]struct{})}
}

// Add inserts id. Adding an existing id is a no-op.
func (s *IDSet) Add(id int64) {
	if _, ok := s.members[id]; ok {
		return
	}
	s.members[id] = struct{}{}
	// ids are issued in ascending order, so appending usually keeps the cache valid
	if !s.dirty && (len(s.sorted) == 0 || s.sorted[len(s.sorted)-1] < id) {
		s.sorted = append(s.sorted, id)
		return
	}
	s.dirty = true
}

// Remove deletes id if present.
func (s *IDSet) Remove(id int64) {
	if _, ok := s.members[id]; !ok {
		return
	}
	delete(s.members, id)
	s.dirty = true
}

// Has reports whether id is in the set.
func (s *IDSet) Has(id int64) bool {
	_, ok := s.members[id]
	return ok
}

// Len returns the number of ids.
func (s *IDSet) Len() int {
	return len(s.members)
}

// IDs returns the ids in ascending order. The slice must not be modified.
func (s *IDSet) IDs() []int64 {
	if s.dirty {
		// never reuse the old backing array, callers may still hold it
		sorted := make([]int64, 0, len(s.members))
		for id := range s.members {
			sorted = append(sorted, id)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		s.sorted = sorted
		s.dirty = false
	}
	return s.sorted
}
