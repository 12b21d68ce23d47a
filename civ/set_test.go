package civ

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civlsm/civ/codec"
	"civlsm/config"
)

func TestSetInsertContainsRemove(t *testing.T) {
	s := NewSetWithConfig[int](smallConfig())
	assert.True(t, s.Insert(1), "first insert of a new member reports newly-inserted")
	assert.True(t, s.Contains(1))
	assert.False(t, s.Insert(1), "inserting an existing member reports not-newly-inserted")

	assert.True(t, s.Remove(1))
	assert.False(t, s.Contains(1))
	assert.False(t, s.Remove(1))
}

func TestSetCascadesLikeMap(t *testing.T) {
	s := NewSetWithConfig[int](smallConfig()) // S=3
	for i := 0; i < 10; i++ {
		s.Insert(i)
	}
	for i := 0; i < 10; i++ {
		assert.True(t, s.Contains(i), "member %d missing", i)
	}
	assert.Equal(t, 10, s.Len())
}

func TestSetSnapshotRoundTrip(t *testing.T) {
	cfg := config.Tunables{HotSlotSize: 4, TombsLimit: 0.25, AutoShrinkLimit: 1}
	s := NewSetWithConfig[string](cfg)
	members := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	for _, m := range members {
		s.Insert(m)
	}
	s.Remove("bravo")

	var buf bytes.Buffer
	require.NoError(t, s.WriteTo(&buf, codec.String()))

	loaded, err := LoadSet[string](&buf, codec.String())
	require.NoError(t, err)

	assert.Equal(t, s.Len(), loaded.Len())
	assert.False(t, loaded.Contains("bravo"))
	for _, m := range []string{"alpha", "charlie", "delta", "echo", "foxtrot"} {
		assert.True(t, loaded.Contains(m), "member %q missing after round-trip", m)
	}
}
