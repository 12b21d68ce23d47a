// Package level implements one tier of the cascading-merge storage engine:
// a sorted, key-ordered array of (key, value) pairs paired with a live-mask
// bitset. A Level is immutable in key order during its lifetime — entries
// are never shifted, only tombstoned via the bitset, until the Level is
// wholly cleared by a merge or compaction.
package level

import (
	"cmp"

	"civlsm/internal/bitset"
)

const (
	tagCapacityMismatch = "level: keys/values length mismatch"
)

// Level holds up to Capacity entries in strictly ascending key order.
type Level[K cmp.Ordered, V any] struct {
	capacity int
	flags    *bitset.Bitset
	keys     []K
	values   []V
}

// NewEmpty returns an empty Level with the given capacity, ready to be
// filled by a merge.
func NewEmpty[K cmp.Ordered, V any](capacity int) *Level[K, V] {
	return &Level[K, V]{
		capacity: capacity,
		flags:    bitset.NewZeros(capacity),
		keys:     make([]K, 0, capacity),
		values:   make([]V, 0, capacity),
	}
}

// NewFromSorted builds a Level directly from already key-sorted parallel
// slices, used when L0 is created straight from the drained HotSlot.
func NewFromSorted[K cmp.Ordered, V any](keys []K, values []V) *Level[K, V] {
	l := &Level[K, V]{
		capacity: len(keys),
		flags:    bitset.NewOnes(len(keys)),
		keys:     keys,
		values:   values,
	}
	return l
}

// Capacity returns the Level's fixed slot count, S*2^i for tier i.
func (l *Level[K, V]) Capacity() int {
	return l.capacity
}

// Len returns the number of physical (live + tombstoned) entries.
func (l *Level[K, V]) Len() int {
	return len(l.keys)
}

// Empty reports whether the Level holds no entries at all.
func (l *Level[K, V]) Empty() bool {
	return len(l.keys) == 0
}

// PopCount returns the number of live (non-tombstoned) entries.
func (l *Level[K, V]) PopCount() int {
	return l.flags.PopCount()
}

// Contains returns the index of a live entry with key k, or -1 if the key
// is absent or tombstoned. It short-circuits outside [keys[0], keys[last]]
// before falling back to binary search.
func (l *Level[K, V]) Contains(k K) int {
	n := len(l.keys)
	if n == 0 || k < l.keys[0] || k > l.keys[n-1] {
		return -1
	}
	lo, hi := 0, n-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case l.keys[mid] == k:
			if l.flags.Test(mid) {
				return mid
			}
			return -1
		case l.keys[mid] < k:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// ValueAt returns a pointer to the value cell at idx. The pointer is valid
// until the next mutation of the Level.
func (l *Level[K, V]) ValueAt(idx int) *V {
	return &l.values[idx]
}

// KeyAt returns the key at idx, live or tombstoned.
func (l *Level[K, V]) KeyAt(idx int) K {
	return l.keys[idx]
}

// Tombstone clears the live bit at idx, marking a logical deletion without
// shifting any sibling entries.
func (l *Level[K, V]) Tombstone(idx int) {
	l.flags.Clear(idx)
}

// Clear truncates the key/value arrays and zeros the bitset, preserving
// the Level's allocated capacity and backing storage.
func (l *Level[K, V]) Clear() {
	l.keys = l.keys[:0]
	l.values = l.values[:0]
	l.flags.Reset()
}

// ShrinkToFit releases excess backing capacity on the key/value arrays.
func (l *Level[K, V]) ShrinkToFit() {
	if cap(l.keys) == len(l.keys) {
		return
	}
	keys := make([]K, len(l.keys))
	copy(keys, l.keys)
	l.keys = keys
	values := make([]V, len(l.values))
	copy(values, l.values)
	l.values = values
}

// FilteredIter walks live entries only, skipping tombstones, in ascending
// key order. Iteration stops early if yield returns false.
func (l *Level[K, V]) FilteredIter(yield func(k K, v V) bool) {
	for i := range l.keys {
		if l.flags.Test(i) {
			if !yield(l.keys[i], l.values[i]) {
				return
			}
		}
	}
}

// Fill appends up to Capacity-Len() entries from the given key/value
// slices (already in ascending order) and marks them live, recording the
// count as the new bitset population via SetOnes. It reports how many
// entries were consumed.
func (l *Level[K, V]) Fill(keys []K, values []V) int {
	if len(keys) != len(values) {
		panic(tagCapacityMismatch)
	}
	room := l.capacity - len(l.keys)
	n := len(keys)
	if n > room {
		n = room
	}
	l.keys = append(l.keys, keys[:n]...)
	l.values = append(l.values, values[:n]...)
	l.flags.SetOnes(len(l.keys))
	return n
}

// HeapMem estimates the bytes held by this Level's backing arrays and
// bitset, given the size in bytes of one key and of one value.
func (l *Level[K, V]) HeapMem(keySize, valueSize int) int {
	return cap(l.keys)*keySize + cap(l.values)*valueSize + len(l.flags.Words())*8
}

// Words exposes the Level's live-mask bitset as raw words, for
// serialization.
func (l *Level[K, V]) Words() []uint64 {
	return l.flags.Words()
}

// AllIter walks every physical entry — live and tombstoned alike — in
// array order, for serialization. Unlike FilteredIter it does not skip
// dead cells, so a snapshot round-trip preserves the exact tombstone
// layout rather than compacting it away.
func (l *Level[K, V]) AllIter(yield func(k K, v V) bool) {
	for i := range l.keys {
		if !yield(l.keys[i], l.values[i]) {
			return
		}
	}
}

// FromParts reconstructs a Level directly from a capacity, a previously
// serialized live-mask bitset, and parallel key/value slices, used when
// loading a snapshot.
func FromParts[K cmp.Ordered, V any](capacity int, flags *bitset.Bitset, keys []K, values []V) *Level[K, V] {
	return &Level[K, V]{
		capacity: capacity,
		flags:    flags,
		keys:     keys,
		values:   values,
	}
}
