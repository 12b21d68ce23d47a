// Package config holds the tunables of the cascading-merge storage engine
// (HotSlot capacity, tombstone compaction threshold, auto-shrink capacity
// limit) and a JSON-file loader and saver. There is no package-level
// singleton: callers pass Tunables explicitly.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Tunables are the engine's configurable constants, matching spec.md §3.
type Tunables struct {
	// HotSlotSize is S, the HotSlot capacity. Canonically 64.
	HotSlotSize int `json:"hot_slot_size"`
	// TombsLimit is the tombstone fraction that triggers compaction of a
	// freshly merged top Level, together with the S absolute floor.
	TombsLimit float64 `json:"tombs_limit"`
	// AutoShrinkLimit is the capacity at or above which an emptied Level
	// releases its backing storage after a merge.
	AutoShrinkLimit int `json:"auto_shrink_limit"`
}

// Default returns the canonical tunables: S=64, TombsLimit=0.25,
// AutoShrinkLimit=30_000_000.
func Default() Tunables {
	return Tunables{
		HotSlotSize:     64,
		TombsLimit:      0.25,
		AutoShrinkLimit: 30_000_000,
	}
}

// Validate rejects tunables that would make the engine's invariants
// impossible to maintain.
func (t Tunables) Validate() error {
	if t.HotSlotSize < 1 {
		return fmt.Errorf("config: hot_slot_size must be at least 1")
	}
	if t.TombsLimit <= 0 || t.TombsLimit >= 1 {
		return fmt.Errorf("config: tombs_limit must be between 0 and 1")
	}
	if t.AutoShrinkLimit < 1 {
		return fmt.Errorf("config: auto_shrink_limit must be at least 1")
	}
	return nil
}

// Load reads Tunables from a JSON file at path.
func Load(path string) (Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var t Tunables
	if err := json.Unmarshal(data, &t); err != nil {
		return Tunables{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Tunables{}, err
	}
	return t, nil
}

// LoadOrDefault reads Tunables from path, falling back to Default() if the
// file does not exist. A present-but-invalid file is still an error.
func LoadOrDefault(path string) (Tunables, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes t to path as indented JSON, creating the file if needed.
func Save(t Tunables, path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
