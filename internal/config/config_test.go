package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"shadowpipe/internal/config"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := config.NewConfig()

	if cfg.Capture.NoiseThreshold != 0.5 {
		t.Errorf("NoiseThreshold = %f, want 0.5", cfg.Capture.NoiseThreshold)
	}
	if cfg.Capture.MinSamples != 10 {
		t.Errorf("MinSamples = %d, want 10", cfg.Capture.MinSamples)
	}
	if !cfg.Capture.Sanitize || !cfg.Capture.FilterHealth || !cfg.Capture.FilterStatic {
		t.Error("capture safety defaults should be enabled")
	}
	if cfg.Fuzz.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Fuzz.Concurrency)
	}
	if cfg.Fuzz.CallTimeoutMS != 5000 {
		t.Errorf("CallTimeoutMS = %d, want 5000", cfg.Fuzz.CallTimeoutMS)
	}
	if cfg.Sqlite.Db != "shadowpipe.db" {
		t.Errorf("Sqlite.Db = %s", cfg.Sqlite.Db)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Capture.NoiseThreshold != 0.5 {
		t.Errorf("NoiseThreshold = %f, want default 0.5", cfg.Capture.NoiseThreshold)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: warn
capture:
  noiseThreshold: 0.8
  minSamples: 20
fuzz:
  concurrency: 16
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
	if cfg.Capture.NoiseThreshold != 0.8 || cfg.Capture.MinSamples != 20 {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Fuzz.Concurrency != 16 {
		t.Errorf("Concurrency = %d, want 16", cfg.Fuzz.Concurrency)
	}
	// 未覆盖的字段保留默认值
	if cfg.Fuzz.CallTimeoutMS != 5000 {
		t.Errorf("CallTimeoutMS = %d, want default 5000", cfg.Fuzz.CallTimeoutMS)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err == nil {
		t.Error("Load() with invalid YAML should fail")
	}
}
