package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() failed Validate: %v", err)
	}
}

func TestValidateRejectsBadTunables(t *testing.T) {
	tests := []struct {
		name string
		t    Tunables
	}{
		{"zero hot slot size", Tunables{HotSlotSize: 0, TombsLimit: 0.25, AutoShrinkLimit: 1}},
		{"tombs limit at zero", Tunables{HotSlotSize: 64, TombsLimit: 0, AutoShrinkLimit: 1}},
		{"tombs limit at one", Tunables{HotSlotSize: 64, TombsLimit: 1, AutoShrinkLimit: 1}},
		{"negative auto shrink limit", Tunables{HotSlotSize: 64, TombsLimit: 0.25, AutoShrinkLimit: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.t.Validate(); err == nil {
				t.Fatal("Validate() = nil, want error")
			}
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunables.json")
	want := Tunables{HotSlotSize: 128, TombsLimit: 0.4, AutoShrinkLimit: 1000}

	if err := Save(want, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadOrDefaultFallsBackWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	got, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if got != Default() {
		t.Fatalf("LoadOrDefault() = %+v, want Default()", got)
	}
}

func TestLoadOrDefaultStillErrorsOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := Save(Tunables{HotSlotSize: -1, TombsLimit: 0.25, AutoShrinkLimit: 1}, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := LoadOrDefault(path); err == nil {
		t.Fatal("LoadOrDefault() = nil for an invalid but present file, want error")
	}
}
