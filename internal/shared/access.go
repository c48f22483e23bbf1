package shared

import "sort"

// AccessScope is the caller-supplied set of accessible facility IDs, already
// computed by the upstream access-control collaborator. The engine never
// queries authorization state itself.
type AccessScope struct {
	facilityIDs map[int64]struct{}
}

// NewAccessScope builds a scope from the supplied IDs.
func NewAccessScope(facilityIDs []int64) AccessScope {
	set := make(map[int64]struct{}, len(facilityIDs))
	for _, id := range facilityIDs {
		set[id] = struct{}{}
	}
	return AccessScope{facilityIDs: set}
}

// Contains reports scope membership.
func (s AccessScope) Contains(facilityID int64) bool {
	_, ok := s.facilityIDs[facilityID]
	return ok
}

// IDs returns the scope as a sorted slice.
func (s AccessScope) IDs() []int64 {
	ids := make([]int64, 0, len(s.facilityIDs))
	for id := range s.facilityIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Intersect keeps only the candidates present in the scope, sorted.
func (s AccessScope) Intersect(candidates []int64) []int64 {
	out := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if s.Contains(id) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Empty reports whether the scope contains no facilities.
func (s AccessScope) Empty() bool {
	return len(s.facilityIDs) == 0
}
