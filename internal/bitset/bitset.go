// Package bitset implements a word-packed, fixed-length bit vector used by
// a Level to mark which of its slots hold a live entry versus a tombstone.
package bitset

import "math/bits"

const wordBits = 64

// panic tags for invariant violations, matching the original source's
// panic!("Unreachable ...") call sites.
const (
	tagIndexOutOfRange = "bitset: index out of range"
	tagSetOnesTooLarge = "bitset: set_ones(n) with n > length"
)

// Bitset is a dense bit vector of a fixed bit length. The length is tracked
// separately from the backing word slice so a boundary-aligned length never
// leaves a spurious extra word.
type Bitset struct {
	words []uint64
	n     int // length in bits
}

func wordsFor(n int) int {
	return (n + wordBits - 1) / wordBits
}

// NewZeros constructs a bitset of length n with every bit cleared.
func NewZeros(n int) *Bitset {
	return &Bitset{
		words: make([]uint64, wordsFor(n)),
		n:     n,
	}
}

// NewOnes constructs a bitset of length n with every bit set.
func NewOnes(n int) *Bitset {
	b := &Bitset{
		words: make([]uint64, wordsFor(n)),
		n:     n,
	}
	b.fillOnes(n)
	return b
}

// Len reports the bitset's fixed length in bits.
func (b *Bitset) Len() int {
	return b.n
}

// Test reports whether bit i is set.
func (b *Bitset) Test(i int) bool {
	if i < 0 || i >= b.n {
		panic(tagIndexOutOfRange)
	}
	return b.words[i/wordBits]&(uint64(1)<<uint(i%wordBits)) != 0
}

// Clear unsets bit i, marking slot i as a tombstone.
func (b *Bitset) Clear(i int) {
	if i < 0 || i >= b.n {
		panic(tagIndexOutOfRange)
	}
	b.words[i/wordBits] &^= uint64(1) << uint(i%wordBits)
}

// Reset zeros every word, leaving the length unchanged.
func (b *Bitset) Reset() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// PopCount returns the number of set bits.
func (b *Bitset) PopCount() int {
	count := 0
	for _, w := range b.words {
		count += bits.OnesCount64(w)
	}
	return count
}

// SetOnes sets exactly the first n bits and clears the rest, without
// changing the bitset's length. n must not exceed Len(); the boundary case
// where n is a multiple of 64 must not bleed a stray bit into the next
// word, which fillOnes below guards explicitly.
func (b *Bitset) SetOnes(n int) {
	if n > b.n {
		panic(tagSetOnesTooLarge)
	}
	b.fillOnes(n)
}

func (b *Bitset) fillOnes(n int) {
	remaining := n
	for i := range b.words {
		switch {
		case remaining <= 0:
			b.words[i] = 0
		case remaining >= wordBits:
			b.words[i] = ^uint64(0)
		default:
			b.words[i] = (uint64(1) << uint(remaining)) - 1
		}
		if remaining > wordBits {
			remaining -= wordBits
		} else {
			remaining = 0
		}
	}
}

// Words exposes the raw backing words for serialization.
func (b *Bitset) Words() []uint64 {
	return b.words
}

// FromWords reconstructs a bitset of length n from previously serialized
// words. The caller is responsible for ensuring len(words) == wordsFor(n).
func FromWords(n int, words []uint64) *Bitset {
	return &Bitset{n: n, words: words}
}
