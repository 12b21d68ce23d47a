package civ

import (
	"cmp"

	"civlsm/config"
)

// Set is CivSet<K>: a Map[K, struct{}] presented with set-shaped methods.
type Set[K cmp.Ordered] struct {
	m *Map[K, struct{}]
}

// NewSet returns an empty Set using the default tunables.
func NewSet[K cmp.Ordered]() *Set[K] {
	return &Set[K]{m: New[K, struct{}]()}
}

// NewSetWithConfig returns an empty Set tuned by cfg.
func NewSetWithConfig[K cmp.Ordered](cfg config.Tunables) *Set[K] {
	return &Set[K]{m: NewWithConfig[K, struct{}](cfg)}
}

// Len returns the number of live members.
func (s *Set[K]) Len() int { return s.m.Len() }

// Tombs returns the number of tombstoned members.
func (s *Set[K]) Tombs() int { return s.m.Tombs() }

// Clear empties the Set.
func (s *Set[K]) Clear() { s.m.Clear() }

// Contains reports whether k is a member.
func (s *Set[K]) Contains(k K) bool { return s.m.Contains(k) }

// Insert adds k, reporting whether it was newly inserted (false if k was
// already a member).
func (s *Set[K]) Insert(k K) (newlyInserted bool) {
	_, had := s.m.Insert(k, struct{}{})
	return !had
}

// Remove deletes k, reporting whether it had been a member.
func (s *Set[K]) Remove(k K) bool {
	_, ok := s.m.Remove(k)
	return ok
}

// ShrinkToFit releases excess backing capacity.
func (s *Set[K]) ShrinkToFit() { s.m.ShrinkToFit() }

// FilteredIter visits every live member in the same order as
// Map.FilteredIter.
func (s *Set[K]) FilteredIter(yield func(k K) bool) {
	s.m.FilteredIter(func(k K, _ struct{}) bool { return yield(k) })
}

// Stats reports the Set's occupancy.
func (s *Set[K]) Stats() Stats { return s.m.Stats() }
