package models

// CandidateSet is an ordered set of user ids produced by criteria filtering
type CandidateSet struct {
	ids  []int64
	seen map[int64]struct{}
}

// NewCandidateSet builds a set from ids, keeping the first occurrence of each
func NewCandidateSet(ids ...int64) *CandidateSet {
	s := &CandidateSet{
		ids:  make([]int64, 0, len(ids)),
		seen: make(map[int64]struct{}, len(ids)),
	}
	s.Union(ids)
	return s
}

// Union appends the ids not already present, in order
func (s *CandidateSet) Union(ids []int64) {
	for _, id := range ids {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}

// Intersect drops every id not in ids, keeping the existing order
func (s *CandidateSet) Intersect(ids []int64) {
	keep := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	kept := s.ids[:0]
	for _, id := range s.ids {
		if _, ok := keep[id]; ok {
			kept = append(kept, id)
			continue
		}
		delete(s.seen, id)
	}
	s.ids = kept
}

func (s *CandidateSet) Contains(id int64) bool {
	_, ok := s.seen[id]
	return ok
}

func (s *CandidateSet) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the ids in set order
func (s *CandidateSet) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Page returns the index-th chunk of size ids. Out of range pages are empty.
func (s *CandidateSet) Page(size, index int) []int64 {
	if size <= 0 || index < 0 {
		return []int64{}
	}

	start := size * index
	if start >= len(s.ids) || start < 0 {
		return []int64{}
	}

	end := start + size
	if end > len(s.ids) {
		end = len(s.ids)
	}

	out := make([]int64, end-start)
	copy(out, s.ids[start:end])
	return out
}
