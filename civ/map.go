// Package civ implements CivMap and CivSet, an in-memory ordered-key
// associative container built as a cascade of sorted arrays: a small
// unsorted HotSlot write buffer in front of a chain of power-of-two-sized
// Levels. Lookups fan out across the chain; writes absorb into the HotSlot
// and only cascade into the Levels once it overflows. Deletions tombstone
// a Level's live-mask in place rather than shifting entries, and a
// tombstone-heavy Level is compacted by redistributing its live contents
// down into the (by-construction empty) Levels below it.
//
// This is a single-threaded, in-memory container: it holds no lock and
// offers no durability beyond an explicit WriteTo/LoadMap snapshot.
package civ

import (
	"cmp"
	"sort"

	"civlsm/config"
	"civlsm/internal/hotslot"
	"civlsm/internal/level"
)

// Map is CivMap<K, V>: an ordered-key associative container backed by a
// HotSlot and a cascade of Levels.
type Map[K cmp.Ordered, V any] struct {
	cfg    config.Tunables
	hot    *hotslot.Slot[K, V]
	levels []*level.Level[K, V]
	length int
	tombs  int

	// scratch buffers reused across merges and compactions to avoid
	// reallocating on every cascade.
	scratchKeys   []K
	scratchValues []V
}

// New returns an empty Map using the default tunables (config.Default).
func New[K cmp.Ordered, V any]() *Map[K, V] {
	return NewWithConfig[K, V](config.Default())
}

// NewWithConfig returns an empty Map tuned by cfg. It panics if cfg fails
// Validate.
func NewWithConfig[K cmp.Ordered, V any](cfg config.Tunables) *Map[K, V] {
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return &Map[K, V]{
		cfg: cfg,
		hot: hotslot.New[K, V](cfg.HotSlotSize),
	}
}

// Len returns the number of live entries.
func (m *Map[K, V]) Len() int { return m.length }

// Tombs returns the number of dead cells across all non-empty Levels: for
// each such Level, its capacity minus its live entries. This counts
// tombstoned entries as well as slots a merge left unfilled because it
// dropped tombstones, and the spare room compaction leaves; compaction
// reclaims them.
func (m *Map[K, V]) Tombs() int { return m.tombs }

// Clear empties the Map, releasing the HotSlot and every Level.
func (m *Map[K, V]) Clear() {
	m.length = 0
	m.tombs = 0
	m.hot.Clear()
	m.levels = m.levels[:0]
	m.scratchKeys = m.scratchKeys[:0]
	m.scratchValues = m.scratchValues[:0]
}

// Contains reports whether k is present.
func (m *Map[K, V]) Contains(k K) bool {
	if m.hot.Find(k) >= 0 {
		return true
	}
	li, _ := m.findInLevels(k)
	return li >= 0
}

// findInLevels scans Levels low-to-high, returning the owning Level's index
// and the entry's slot index within it, or (-1, -1) if k is absent or
// tombstoned everywhere.
func (m *Map[K, V]) findInLevels(k K) (levelIdx, slotIdx int) {
	for i, lv := range m.levels {
		if idx := lv.Contains(k); idx >= 0 {
			return i, idx
		}
	}
	return -1, -1
}

// Get returns the value for k, checking the HotSlot before the Levels.
func (m *Map[K, V]) Get(k K) (V, bool) {
	if v, ok := m.hot.Get(k); ok {
		return v, true
	}
	if li, si := m.findInLevels(k); li >= 0 {
		return *m.levels[li].ValueAt(si), true
	}
	var zero V
	return zero, false
}

// GetPointer returns a pointer to k's value cell, valid until the next
// mutation of the Map. It favors a Level hit over a HotSlot hit since a
// Level pointer survives more subsequent operations than a HotSlot one.
func (m *Map[K, V]) GetPointer(k K) (*V, bool) {
	if li, si := m.findInLevels(k); li >= 0 {
		return m.levels[li].ValueAt(si), true
	}
	if p := m.hot.GetPointer(k); p != nil {
		return p, true
	}
	return nil, false
}

// Insert writes (k, v). If k already lives in a Level, its value is
// overwritten in place and the Level's sort order is untouched — no new
// HotSlot entry is created, and no merge is triggered. Otherwise the pair
// is written (or overwritten) in the HotSlot, cascading into the Levels if
// that fills it.
func (m *Map[K, V]) Insert(k K, v V) (prior V, hadPrior bool) {
	if li, si := m.findInLevels(k); li >= 0 {
		lvl := m.levels[li]
		cell := lvl.ValueAt(si)
		prior = *cell
		*cell = v
		return prior, true
	}

	prior, hadPrior, overflow := m.hot.Insert(k, v)
	if overflow == hotslot.Full {
		m.cascadeMerge()
	}
	if !hadPrior {
		m.length++
	}
	return prior, hadPrior
}

// Remove deletes k, if present, returning its removed value. A Level hit
// is tombstoned in place; a HotSlot hit is swap-removed outright.
func (m *Map[K, V]) Remove(k K) (Removed[V], bool) {
	if li, si := m.findInLevels(k); li >= 0 {
		lvl := m.levels[li]
		cell := lvl.ValueAt(si)
		lvl.Tombstone(si)
		m.tombs++
		m.length--
		return Removed[V]{ptr: cell}, true
	}
	if v, ok := m.hot.Remove(k); ok {
		m.length--
		return Removed[V]{owned: v, isOwned: true}, true
	}
	return Removed[V]{}, false
}

// ShrinkToFit releases excess backing capacity on every Level and on the
// internal scratch buffers.
func (m *Map[K, V]) ShrinkToFit() {
	for _, lvl := range m.levels {
		lvl.ShrinkToFit()
	}
	m.scratchKeys = append([]K(nil), m.scratchKeys...)
	m.scratchValues = append([]V(nil), m.scratchValues...)
}

// FilteredIter visits every live entry, Levels from highest tier to lowest
// followed by the unsorted HotSlot — global key order is not guaranteed.
// Iteration stops as soon as yield returns false.
func (m *Map[K, V]) FilteredIter(yield func(k K, v V) bool) {
	for i := len(m.levels) - 1; i >= 0; i-- {
		done := false
		m.levels[i].FilteredIter(func(k K, v V) bool {
			if !yield(k, v) {
				done = true
				return false
			}
			return true
		})
		if done {
			return
		}
	}
	m.hot.Each(yield)
}

// cascadeMerge absorbs an overflowed HotSlot into the Level chain: it finds
// (or creates) the lowest empty Level n, merges the HotSlot and Levels
// 0..n into it, clears the sources, and runs tombstone compaction.
func (m *Map[K, V]) cascadeMerge() {
	if len(m.levels) == 0 {
		keys := make([]K, 0, m.hot.Cap())
		values := make([]V, 0, m.hot.Cap())
		m.hot.SortedDrain(func(k K, v V) {
			keys = append(keys, k)
			values = append(values, v)
		})
		m.levels = append(m.levels, level.NewFromSorted[K, V](keys, values))
		return
	}

	n := 0
	for n < len(m.levels) && !m.levels[n].Empty() {
		n++
	}
	if n == len(m.levels) {
		capacity := m.cfg.HotSlotSize << uint(n)
		m.levels = append(m.levels, level.NewEmpty[K, V](capacity))
	}

	m.mergeInto(n)
	m.checkTombs(n)
	m.autoShrink()
}

// mergeInto concatenates the HotSlot's entries with every live entry from
// Levels 0..n into the scratch buffers, stable-sorts by key, and fills
// Level n with the result. Because levels 0..n-1 plus the HotSlot can
// never hold more live entries than Level n's capacity (S + S*(2^n-1) ==
// S*2^n), the fill always consumes the whole scratch buffer.
func (m *Map[K, V]) mergeInto(n int) {
	m.scratchKeys = m.scratchKeys[:0]
	m.scratchValues = m.scratchValues[:0]

	m.hot.Each(func(k K, v V) bool {
		m.scratchKeys = append(m.scratchKeys, k)
		m.scratchValues = append(m.scratchValues, v)
		return true
	})
	m.hot.Clear()

	for i := 0; i < n; i++ {
		m.levels[i].FilteredIter(func(k K, v V) bool {
			m.scratchKeys = append(m.scratchKeys, k)
			m.scratchValues = append(m.scratchValues, v)
			return true
		})
		m.levels[i].Clear()
	}

	idx := make([]int, len(m.scratchKeys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return m.scratchKeys[idx[a]] < m.scratchKeys[idx[b]] })

	sortedKeys := make([]K, len(idx))
	sortedValues := make([]V, len(idx))
	for i, j := range idx {
		sortedKeys[i] = m.scratchKeys[j]
		sortedValues[i] = m.scratchValues[j]
	}

	lvl := m.levels[n]
	if used := lvl.Fill(sortedKeys, sortedValues); used != len(sortedKeys) {
		panic(tagMergeUnreachable)
	}
}

// checkTombs compacts Level n if its tombstone fraction crosses the
// configured limit (and its absolute tombstone count exceeds the HotSlot
// size): the Level's live contents are redistributed downward into the
// Levels below it — guaranteed empty by the caller — walking from the
// highest index down, packing each Level to capacity before moving to the
// next, and placing the residue in the first Level whose spare room would
// then be at most the HotSlot size (Levels that would be left emptier than
// that are skipped).
func (m *Map[K, V]) checkTombs(n int) {
	lvl := m.levels[n]
	if lvl.Empty() {
		panic(tagCheckTombsUnreachable)
	}
	for i := 0; i < n; i++ {
		if !m.levels[i].Empty() {
			panic(tagCheckTombsUnreachable)
		}
	}

	localTombs := lvl.Capacity() - lvl.PopCount()
	if localTombs <= m.cfg.HotSlotSize {
		return
	}
	if float64(localTombs)/float64(lvl.Capacity()) <= m.cfg.TombsLimit {
		return
	}
	if n == 0 {
		return
	}

	m.scratchKeys = m.scratchKeys[:0]
	m.scratchValues = m.scratchValues[:0]
	lvl.FilteredIter(func(k K, v V) bool {
		m.scratchKeys = append(m.scratchKeys, k)
		m.scratchValues = append(m.scratchValues, v)
		return true
	})

	count := len(m.scratchKeys)
	consumed := 0
	placed := false
	for j := n - 1; j >= 0 && count-consumed > 0; j-- {
		target := m.levels[j]
		targetCap := target.Capacity()
		remaining := count - consumed

		if remaining >= targetCap {
			if used := target.Fill(m.scratchKeys[consumed:consumed+targetCap], m.scratchValues[consumed:consumed+targetCap]); used != targetCap {
				panic(tagShortFill)
			}
			consumed += targetCap
			if consumed == count {
				m.tombs -= localTombs
				placed = true
				break
			}
			continue
		}

		if targetCap-remaining > m.cfg.HotSlotSize {
			continue
		}

		if used := target.Fill(m.scratchKeys[consumed:], m.scratchValues[consumed:]); used != remaining {
			panic(tagShortFill)
		}
		freedTombs := localTombs - (targetCap - remaining)
		if freedTombs > m.tombs {
			panic(tagTombsUnderflow)
		}
		m.tombs -= freedTombs
		consumed = count
		placed = true
		break
	}

	if !placed || consumed != count {
		panic(tagResidueNotPlaced)
	}
	lvl.Clear()
}

// autoShrink releases backing capacity on any Level that has gone empty
// and grown at least as large as the configured auto-shrink threshold.
func (m *Map[K, V]) autoShrink() {
	for _, lvl := range m.levels {
		if lvl.Empty() && lvl.Capacity() >= m.cfg.AutoShrinkLimit {
			lvl.ShrinkToFit()
		}
	}
}

// LevelStats reports one Level's occupancy.
type LevelStats struct {
	Index    int
	Capacity int
	Live     int
	Tombs    int
}

// Stats reports the Map's overall and per-Level occupancy, supplementing
// the debug-only accounting the original source gates behind a build
// feature with an always-available method.
type Stats struct {
	Len               int
	Tombs             int
	Levels            []LevelStats
	AllocatedCapacity int
	LiveCapacity      int
}

// Stats computes a snapshot of the Map's current occupancy.
func (m *Map[K, V]) Stats() Stats {
	s := Stats{Len: m.length, Tombs: m.tombs}
	for i, lvl := range m.levels {
		live := lvl.PopCount()
		s.Levels = append(s.Levels, LevelStats{
			Index:    i,
			Capacity: lvl.Capacity(),
			Live:     live,
			Tombs:    lvl.Len() - live,
		})
		s.AllocatedCapacity += lvl.Capacity()
		if !lvl.Empty() {
			s.LiveCapacity += lvl.Capacity()
		}
	}
	return s
}
