// Package config loads runtime settings from an optional JSON file and the
// MARKER_MEASURE_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ironsheep/marker-measure/internal/rectify"
)

// EnvPrefix starts every environment variable read by ApplyEnv.
const EnvPrefix = "MARKER_MEASURE_"

// Config holds runtime configuration for detection, rectification and the
// service front ends.
type Config struct {
	// Reference sheet in millimetres.
	ReferenceShortMM float64 `json:"reference_short_mm"`
	ReferenceLongMM  float64 `json:"reference_long_mm"`

	// Rectified canvas. When width or height is zero the canvas is derived
	// from the reference size at RectifyDPI.
	RectifyDPI    float64 `json:"rectify_dpi"`
	RectifyWidth  int     `json:"rectify_width"`
	RectifyHeight int     `json:"rectify_height"`

	MaxCandidates     int     `json:"max_candidates"`
	MaxSuggestions    int     `json:"max_suggestions"`
	MinSuggestionArea float64 `json:"min_suggestion_area"`

	// AnalysisMaxSide bounds the long side of the copy that detection runs
	// on. Zero analyses at full resolution.
	AnalysisMaxSide int `json:"analysis_max_side"`

	Debug        bool   `json:"debug"`
	DebugDir     string `json:"debug_dir"`
	ProcessedDir string `json:"processed_dir"`

	// HTTP front end
	Addr           string `json:"addr"`
	RequestTimeout int    `json:"request_timeout_seconds"`
	MaxUploadMB    int    `json:"max_upload_mb"`

	// Inbox watcher
	WatchDir        string `json:"watch_dir"`
	WatchWorkers    int    `json:"watch_workers"`
	WatchDebounceMS int    `json:"watch_debounce_ms"`
}

// DefaultAnalysisMaxSide is the default working resolution for analysis.
const DefaultAnalysisMaxSide = 1600

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		ReferenceShortMM:  210,
		ReferenceLongMM:   297,
		RectifyDPI:        300,
		MaxCandidates:     15,
		MaxSuggestions:    5,
		MinSuggestionArea: 1000,
		AnalysisMaxSide:   DefaultAnalysisMaxSide,
		DebugDir:          "debug",
		ProcessedDir:      "processed",
		Addr:              ":8000",
		RequestTimeout:    60,
		MaxUploadMB:       32,
		WatchDir:          "inbox",
		WatchWorkers:      2,
		WatchDebounceMS:   500,
	}
}

// Validate clamps values to safe ranges. Only a reference with a
// non-positive side is reported as an error; everything else is repaired.
func (c *Config) Validate() error {
	if c.ReferenceShortMM <= 0 || c.ReferenceLongMM <= 0 {
		return fmt.Errorf("reference size %gx%g mm must be positive", c.ReferenceShortMM, c.ReferenceLongMM)
	}
	if c.ReferenceShortMM > c.ReferenceLongMM {
		c.ReferenceShortMM, c.ReferenceLongMM = c.ReferenceLongMM, c.ReferenceShortMM
	}
	if c.RectifyDPI <= 0 {
		c.RectifyDPI = 300
	}
	if c.RectifyWidth < 0 || c.RectifyHeight < 0 {
		c.RectifyWidth, c.RectifyHeight = 0, 0
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 15
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = 5
	}
	if c.MinSuggestionArea <= 0 {
		c.MinSuggestionArea = 1000
	}
	if c.AnalysisMaxSide < 0 {
		c.AnalysisMaxSide = DefaultAnalysisMaxSide
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 32
	}
	if c.WatchWorkers <= 0 {
		c.WatchWorkers = 1
	}
	if c.WatchDebounceMS < 0 {
		c.WatchDebounceMS = 0
	}
	return nil
}

// Canvas returns the portrait rectification canvas.
func (c *Config) Canvas() rectify.Canvas {
	if c.RectifyWidth > 0 && c.RectifyHeight > 0 {
		return rectify.Canvas{Width: c.RectifyWidth, Height: c.RectifyHeight}
	}
	return rectify.CanvasFor(c.ReferenceShortMM, c.ReferenceLongMM, c.RectifyDPI)
}

// Timeout returns RequestTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Debounce returns WatchDebounceMS as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// Load reads configuration from the JSON file at path. A missing file
// yields DefaultConfig(). On a decode error the defaults are returned with
// the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// ApplyEnv overrides fields from environment variables looked up with
// getenv (normally os.Getenv). Unparseable numbers are reported and leave
// the field unchanged.
//
//	MARKER_MEASURE_LOG_LEVEL=debug   enables Debug
//	MARKER_MEASURE_DEBUG_DIR         DebugDir
//	MARKER_MEASURE_PROCESSED_DIR     ProcessedDir
//	MARKER_MEASURE_ADDR              Addr
//	MARKER_MEASURE_TIMEOUT           RequestTimeout (seconds)
//	MARKER_MEASURE_WATCH_DIR         WatchDir
//	MARKER_MEASURE_WORKERS           WatchWorkers
//	MARKER_MEASURE_DPI               RectifyDPI
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv(EnvPrefix+"LOG_LEVEL") == "debug" {
		c.Debug = true
	}
	setString := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	setString("DEBUG_DIR", &c.DebugDir)
	setString("PROCESSED_DIR", &c.ProcessedDir)
	setString("ADDR", &c.Addr)
	setString("WATCH_DIR", &c.WatchDir)

	var errs []error
	setInt := func(key string, dst *int) {
		v := getenv(EnvPrefix + key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = n
	}
	setInt("TIMEOUT", &c.RequestTimeout)
	setInt("WORKERS", &c.WatchWorkers)

	if v := getenv(EnvPrefix + "DPI"); v != "" {
		dpi, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sDPI: %w", EnvPrefix, err))
		} else {
			c.RectifyDPI = dpi
		}
	}

	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
