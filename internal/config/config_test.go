package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ironsheep/marker-measure/internal/rectify"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if got := cfg.Canvas(); got != rectify.A4At300DPI {
		t.Errorf("Canvas: got %+v, want %+v", got, rectify.A4At300DPI)
	}
	if cfg.Timeout() != time.Minute {
		t.Errorf("Timeout: got %v", cfg.Timeout())
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Errorf("Debounce: got %v", cfg.Debounce())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		check   func(*Config) bool
		wantErr bool
	}{
		{"swapped reference", func(c *Config) { c.ReferenceShortMM, c.ReferenceLongMM = 297, 210 },
			func(c *Config) bool { return c.ReferenceShortMM == 210 && c.ReferenceLongMM == 297 }, false},
		{"zero reference", func(c *Config) { c.ReferenceShortMM = 0 }, nil, true},
		{"negative candidates", func(c *Config) { c.MaxCandidates = -3 },
			func(c *Config) bool { return c.MaxCandidates == 15 }, false},
		{"zero workers", func(c *Config) { c.WatchWorkers = 0 },
			func(c *Config) bool { return c.WatchWorkers == 1 }, false},
		{"negative analysis side", func(c *Config) { c.AnalysisMaxSide = -1 },
			func(c *Config) bool { return c.AnalysisMaxSide == DefaultAnalysisMaxSide }, false},
		{"full resolution analysis", func(c *Config) { c.AnalysisMaxSide = 0 },
			func(c *Config) bool { return c.AnalysisMaxSide == 0 }, false},
		{"half canvas", func(c *Config) { c.RectifyWidth = -1 },
			func(c *Config) bool { return c.RectifyWidth == 0 && c.RectifyHeight == 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("unexpected config after Validate: %+v", cfg)
			}
		})
	}
}

func TestCanvas_Explicit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RectifyWidth, cfg.RectifyHeight = 420, 594
	if got := cfg.Canvas(); got != (rectify.Canvas{Width: 420, Height: 594}) {
		t.Errorf("got %+v", got)
	}
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.json"))
	if err != nil || cfg.MaxSuggestions != 5 {
		t.Fatalf("missing file should give defaults, got %+v, %v", cfg, err)
	}

	path := filepath.Join(dir, "config.json")
	cfg.MaxSuggestions = 3
	cfg.ReferenceShortMM, cfg.ReferenceLongMM = 216, 279
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.MaxSuggestions != 3 || loaded.ReferenceShortMM != 216 || loaded.ReferenceLongMM != 279 {
		t.Errorf("round trip lost values: %+v", loaded)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(bad)
	if err == nil {
		t.Error("malformed file: expected an error")
	}
	if cfg == nil || cfg.MaxCandidates != 15 {
		t.Error("malformed file should still return defaults")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"MARKER_MEASURE_LOG_LEVEL":     "debug",
		"MARKER_MEASURE_PROCESSED_DIR": "/srv/out",
		"MARKER_MEASURE_ADDR":          "127.0.0.1:9000",
		"MARKER_MEASURE_WORKERS":       "4",
		"MARKER_MEASURE_DPI":           "150",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if !cfg.Debug || cfg.ProcessedDir != "/srv/out" || cfg.Addr != "127.0.0.1:9000" ||
		cfg.WatchWorkers != 4 || cfg.RectifyDPI != 150 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.DebugDir != "debug" {
		t.Errorf("unset variable changed DebugDir to %q", cfg.DebugDir)
	}

	cfg = DefaultConfig()
	err = cfg.ApplyEnv(envMap(map[string]string{"MARKER_MEASURE_TIMEOUT": "soon"}))
	if err == nil {
		t.Error("bad number: expected an error")
	}
	if cfg.RequestTimeout != 60 {
		t.Errorf("bad number changed RequestTimeout to %d", cfg.RequestTimeout)
	}
}
