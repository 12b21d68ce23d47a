package civ

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civlsm/config"
)

func smallConfig() config.Tunables {
	return config.Tunables{HotSlotSize: 3, TombsLimit: 0.25, AutoShrinkLimit: 1}
}

func TestInsertAndGet(t *testing.T) {
	m := NewWithConfig[int, string](smallConfig())
	_, had := m.Insert(1, "a")
	assert.False(t, had)
	v, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, m.Len())
}

func TestInsertOverwriteReturnsPrior(t *testing.T) {
	m := NewWithConfig[int, string](smallConfig())
	m.Insert(1, "a")
	prior, had := m.Insert(1, "b")
	assert.True(t, had)
	assert.Equal(t, "a", prior)
	v, _ := m.Get(1)
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, m.Len(), "overwrite must not change the live count")
}

func TestCascadeMergeBuildsFirstLevel(t *testing.T) {
	m := NewWithConfig[int, string](smallConfig()) // S=3
	m.Insert(3, "c")
	m.Insert(1, "a")
	m.Insert(2, "b") // overflows the HotSlot, cascades into a new Level

	require.Len(t, m.levels, 1)
	assert.Equal(t, 3, m.levels[0].Capacity())
	for _, k := range []int{1, 2, 3} {
		_, ok := m.Get(k)
		assert.True(t, ok, "key %d missing after cascade", k)
	}
}

func TestLevelHitOverwritesInPlaceWithoutNewHotSlotEntry(t *testing.T) {
	m := NewWithConfig[int, string](smallConfig())
	m.Insert(1, "a")
	m.Insert(2, "b")
	m.Insert(3, "c") // cascades: Level 0 now holds {1,2,3}

	require.Len(t, m.levels, 1)
	prior, had := m.Insert(2, "B")
	assert.True(t, had)
	assert.Equal(t, "b", prior)
	assert.Equal(t, 0, m.hot.Len(), "overwriting a Level hit must not touch the HotSlot")

	v, _ := m.Get(2)
	assert.Equal(t, "B", v)
}

func TestRemoveFromHotSlot(t *testing.T) {
	m := NewWithConfig[int, string](smallConfig())
	m.Insert(1, "a")
	removed, ok := m.Remove(1)
	require.True(t, ok)
	assert.Equal(t, "a", removed.Value())
	assert.Equal(t, 0, m.Len())
	_, ok = m.Get(1)
	assert.False(t, ok)
}

func TestRemoveFromLevelTombstonesInPlace(t *testing.T) {
	m := NewWithConfig[int, string](smallConfig())
	m.Insert(1, "a")
	m.Insert(2, "b")
	m.Insert(3, "c") // cascades into Level 0

	removed, ok := m.Remove(2)
	require.True(t, ok)
	assert.Equal(t, "b", removed.Value())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, m.Tombs())

	_, ok = m.Get(2)
	assert.False(t, ok)
	require.Len(t, m.levels, 1, "tombstoning must not shift or drop the Level")
	assert.Equal(t, 3, m.levels[0].Len())
}

func TestRemovedSwapLeavesPlaceholder(t *testing.T) {
	m := NewWithConfig[int, string](smallConfig())
	m.Insert(1, "a")
	m.Insert(2, "b")
	m.Insert(3, "c")

	removed, ok := m.Remove(1)
	require.True(t, ok)
	assert.Equal(t, "a", removed.Swap("placeholder"))
	assert.Equal(t, "placeholder", *m.levels[0].ValueAt(0))
}

func TestCascadeMergeIntoHigherLevelOnRepeatedOverflow(t *testing.T) {
	m := NewWithConfig[int, int](smallConfig()) // S=3
	for i := 0; i < 12; i++ {
		m.Insert(i, i*i)
	}
	for i := 0; i < 12; i++ {
		v, ok := m.Get(i)
		require.True(t, ok, "key %d missing", i)
		assert.Equal(t, i*i, v)
	}
	assert.Equal(t, 12, m.Len())
}

func TestNoDuplicateKeysAcrossHotSlotAndLevels(t *testing.T) {
	m := NewWithConfig[int, int](smallConfig())
	for i := 0; i < 50; i++ {
		m.Insert(i%20, i)
	}
	seen := map[int]bool{}
	m.FilteredIter(func(k, v int) bool {
		assert.False(t, seen[k], "key %d visited more than once", k)
		seen[k] = true
		return true
	})
	assert.Len(t, seen, m.Len())
}

func TestLevelsRemainSortedAfterCascades(t *testing.T) {
	m := NewWithConfig[int, struct{}](smallConfig())
	rng := rand.New(rand.NewSource(1))
	keys := rng.Perm(200)
	for _, k := range keys {
		m.Insert(k, struct{}{})
	}
	for _, lvl := range m.levels {
		var got []int
		lvl.AllIter(func(k int, _ struct{}) bool {
			got = append(got, k)
			return true
		})
		assert.True(t, sort.IntsAreSorted(got), "level not sorted: %v", got)
	}
}

func TestLevelCapacityDoublesPerTier(t *testing.T) {
	m := NewWithConfig[int, struct{}](smallConfig()) // S=3
	for i := 0; i < 3*(1+2+4+8); i++ {
		m.Insert(i, struct{}{})
	}
	for i, lvl := range m.levels {
		want := 3 << uint(i)
		assert.Equal(t, want, lvl.Capacity(), "level %d capacity", i)
	}
}

func TestClearResetsEverything(t *testing.T) {
	m := NewWithConfig[int, string](smallConfig())
	for i := 0; i < 10; i++ {
		m.Insert(i, "x")
	}
	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.Tombs())
	assert.Empty(t, m.levels)
	_, ok := m.Get(0)
	assert.False(t, ok)
}

// TestDifferentialAgainstReferenceMap drives a Map and a plain Go map
// through the same random insert/remove/get sequence and asserts they
// never disagree.
func TestDifferentialAgainstReferenceMap(t *testing.T) {
	m := NewWithConfig[int, int](smallConfig())
	ref := map[int]int{}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		k := rng.Intn(100)
		switch rng.Intn(3) {
		case 0, 1:
			v := rng.Int()
			m.Insert(k, v)
			ref[k] = v
		case 2:
			m.Remove(k)
			delete(ref, k)
		}

		wantV, wantOk := ref[k]
		gotV, gotOk := m.Get(k)
		require.Equal(t, wantOk, gotOk, "iteration %d, key %d", i, k)
		if wantOk {
			require.Equal(t, wantV, gotV, "iteration %d, key %d", i, k)
		}
	}

	require.Equal(t, len(ref), m.Len())
	for k, want := range ref {
		got, ok := m.Get(k)
		require.True(t, ok, "key %d missing at end", k)
		require.Equal(t, want, got, "key %d", k)
	}
}

// TestTombstoneCompactionPreservesSurvivors drives enough churn to force
// repeated cascade merges and tombstone compactions, then checks that
// every key the reference map still holds is reachable and every key it
// doesn't is absent — without asserting anything about which Level ends
// up holding a given key, which compaction is free to redistribute.
func TestTombstoneCompactionPreservesSurvivors(t *testing.T) {
	cfg := config.Tunables{HotSlotSize: 4, TombsLimit: 0.2, AutoShrinkLimit: 1}
	m := NewWithConfig[int, int](cfg)
	ref := map[int]int{}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 4000; i++ {
		k := rng.Intn(40)
		if rng.Intn(4) == 0 {
			m.Remove(k)
			delete(ref, k)
			continue
		}
		v := rng.Int()
		m.Insert(k, v)
		ref[k] = v
	}

	require.Equal(t, len(ref), m.Len())
	for k, want := range ref {
		got, ok := m.Get(k)
		require.True(t, ok, "key %d missing after compaction churn", k)
		require.Equal(t, want, got, "key %d", k)
	}
	for k := 0; k < 40; k++ {
		if _, stillWanted := ref[k]; !stillWanted {
			_, ok := m.Get(k)
			assert.False(t, ok, "removed key %d resurfaced", k)
		}
	}
}

// TestScenarioEveryTenthKeyRemovedThenIterSorted reproduces spec.md §8's
// scenario 5 end to end: insert cnt keys in order, remove every tenth, then
// check that a sorted FilteredIter dump matches the surviving 9/10 exactly.
// cnt defaults to the million-key scale the original source's test_iter
// (original_source/src/civs/map.rs) runs, but is cut down under -short so
// the full suite stays fast; `go test` without -short still exercises the
// real scale.
func TestScenarioEveryTenthKeyRemovedThenIterSorted(t *testing.T) {
	cnt := 1_000_000
	if testing.Short() {
		cnt = 10_000
	}

	m := New[uint64, uint32]()
	want := make([]struct {
		K uint64
		V uint32
	}, 0, cnt)
	for i := 0; i < cnt; i++ {
		m.Insert(uint64(i), uint32(i))
		if i%10 != 0 {
			want = append(want, struct {
				K uint64
				V uint32
			}{uint64(i), uint32(i)})
		}
	}
	for i := 0; i < cnt; i += 10 {
		m.Remove(uint64(i))
	}

	got := make([]struct {
		K uint64
		V uint32
	}, 0, len(want))
	m.FilteredIter(func(k uint64, v uint32) bool {
		got = append(got, struct {
			K uint64
			V uint32
		}{k, v})
		return true
	})
	sort.Slice(got, func(a, b int) bool { return got[a].K < got[b].K })

	require.Equal(t, len(want), len(got))
	require.Equal(t, len(want), m.Len())
	require.Equal(t, want, got)
}
