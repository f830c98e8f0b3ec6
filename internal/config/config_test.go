package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jobs != 0 || len(cfg.Debug) != 0 {
		t.Fatalf("expected zero-value config, got %+v", cfg)
	}
}

func TestResolveDebugExpandsNamedProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".bmakerc.yaml")
	yaml := "jobs: 4\ndebug: [make]\nprofile: verbose\nnamed_debug_masks:\n  verbose: [parse, arch]\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jobs != 4 {
		t.Fatalf("Jobs = %d, want 4", cfg.Jobs)
	}

	got := cfg.ResolveDebug()
	want := []string{"make", "parse", "arch"}
	if len(got) != len(want) {
		t.Fatalf("ResolveDebug = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ResolveDebug = %v, want %v", got, want)
		}
	}
}

func TestResolveDebugFallsBackWhenProfileUnknown(t *testing.T) {
	cfg := &Config{Debug: []string{"make"}, Profile: "missing"}
	got := cfg.ResolveDebug()
	if len(got) != 1 || got[0] != "make" {
		t.Fatalf("ResolveDebug = %v, want [make]", got)
	}
}
