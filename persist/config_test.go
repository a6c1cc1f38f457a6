package persist

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigHonorsEnvOverride(t *testing.T) {
	t.Setenv("GRAPHSTACK_DATA_DIR", "/srv/graphstack")

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.DataDir != "/srv/graphstack" {
		t.Fatalf("data dir = %q, want %q", cfg.DataDir, "/srv/graphstack")
	}
}

func TestDefaultConfigFallsBackToDocuments(t *testing.T) {
	t.Setenv("GRAPHSTACK_DATA_DIR", "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if filepath.Base(cfg.DataDir) != "Documents" {
		t.Fatalf("data dir = %q, want a Documents folder", cfg.DataDir)
	}
}
