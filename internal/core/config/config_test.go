package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "atlas.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "version = 1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GitHub.APIBase != "https://api.github.com" {
		t.Errorf("unexpected api base %q", cfg.GitHub.APIBase)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("unexpected cache ttl %v", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxBytes != 256<<20 {
		t.Errorf("unexpected cache max bytes %d", cfg.Cache.MaxBytes)
	}
	if cfg.Pacing.Every() != 10 {
		t.Errorf("unexpected pacing every_n %d", cfg.Pacing.Every())
	}
	if len(cfg.Classify.StructuralDirs) == 0 {
		t.Error("expected default structural dirs")
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := writeConfig(t, "version = 9\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported config version")
	}
}

func TestLoadRejectsBadGlob(t *testing.T) {
	path := writeConfig(t, `
version = 1
[classify]
exclude_files = ["[bad"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid exclude glob")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ATLAS_GITHUB_TOKEN", "tok-123")
	t.Setenv("ATLAS_CACHE_TTL", "2h")

	cfg := Default()
	if cfg.GitHub.Token != "tok-123" {
		t.Errorf("expected token override, got %q", cfg.GitHub.Token)
	}
	if cfg.Cache.TTL != 2*time.Hour {
		t.Errorf("expected ttl override, got %v", cfg.Cache.TTL)
	}
}

func TestPacingDisabled(t *testing.T) {
	path := writeConfig(t, `
version = 1
[pacing]
every_n = 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pacing.Every() != 0 {
		t.Errorf("every_n = 0 must be preserved (pacing disabled), got %d", cfg.Pacing.Every())
	}
}
