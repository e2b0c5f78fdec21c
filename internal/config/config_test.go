package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "quill.yaml"), dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.CacheDir == "" {
		t.Fatal("expected default cache dir")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUILL_MODULE_PATH", "/a:/b")
	t.Setenv("QUILL_LAZY_MODULES", "1")
	cfg, err := Load(filepath.Join(dir, "missing.yaml"), dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.ModulePaths) != 2 || cfg.ModulePaths[0] != "/a" || cfg.ModulePaths[1] != "/b" {
		t.Fatalf("ModulePaths = %v", cfg.ModulePaths)
	}
	if !cfg.LazyModules {
		t.Fatal("expected LazyModules true")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quill.yaml")
	if err := os.WriteFile(path, []byte("cache_dir: /tmp/custom\nlog_level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.CacheDir != "/tmp/custom" {
		t.Fatalf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
}
