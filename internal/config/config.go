// Package config loads and validates assay configuration from YAML, with
// environment variable overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all assay configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Scan pipeline settings
	Scan ScanConfig `yaml:"scan"`

	// Scoring rubric (weights per category, penalties per severity)
	Rubric RubricConfig `yaml:"rubric"`

	// Report history store
	Store StoreConfig `yaml:"store"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ScanConfig configures snapshot construction and extractor scheduling.
type ScanConfig struct {
	// Glob-style patterns skipped during snapshot construction
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// Independent timeout applied to each extractor run
	PerExtractorTimeoutMs int `yaml:"per_extractor_timeout_ms"`

	// Upper bound on concurrently scanned repositories in batch mode
	MaxConcurrency int `yaml:"max_concurrency"`

	// Files larger than this keep metadata only, no content
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// RubricConfig is the declarative scoring rubric. Weights are keyed by
// category name and must sum to 1.0; penalties are keyed by severity.
// Validation lives in the scoring package, which owns the semantics.
type RubricConfig struct {
	Weights   map[string]float64 `yaml:"weights"`
	Penalties map[string]float64 `yaml:"penalties"`
}

// StoreConfig configures the report history database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig configures continuous re-assessment.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultIgnorePatterns skips VCS metadata, package caches, and build output.
// The snapshot walker additionally allows a small set of dot-directories
// (.github and friends) that carry assessable configuration.
var DefaultIgnorePatterns = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
	".venv",
	"*.min.js",
	"*.lock.json",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "assay",
		Version: "0.3.0",

		Scan: ScanConfig{
			IgnorePatterns:        append([]string(nil), DefaultIgnorePatterns...),
			PerExtractorTimeoutMs: 10000,
			MaxConcurrency:        4,
			MaxFileBytes:          1 << 20,
		},

		Rubric: RubricConfig{
			Weights: map[string]float64{
				"structure":     0.20,
				"dependencies":  0.15,
				"ci_cd":         0.20,
				"security":      0.20,
				"complexity":    0.10,
				"documentation": 0.15,
			},
			Penalties: map[string]float64{
				"info":   0.0,
				"low":    0.5,
				"medium": 1.5,
				"high":   3.0,
			},
		},

		Store: StoreConfig{
			Path: "data/assay.db",
		},

		Watch: WatchConfig{
			DebounceMs: 500,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an error;
// defaults apply. Environment overrides are applied after file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ASSAY_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scan.MaxConcurrency = n
		}
	}
	if v := os.Getenv("ASSAY_EXTRACTOR_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scan.PerExtractorTimeoutMs = n
		}
	}
	if v := os.Getenv("ASSAY_MAX_FILE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Scan.MaxFileBytes = n
		}
	}
	if path := os.Getenv("ASSAY_DB"); path != "" {
		c.Store.Path = path
	}
	if level := os.Getenv("ASSAY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetExtractorTimeout returns the per-extractor timeout as a duration.
func (c *Config) GetExtractorTimeout() time.Duration {
	if c.Scan.PerExtractorTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Scan.PerExtractorTimeoutMs) * time.Millisecond
}

// GetWatchDebounce returns the watch-mode debounce window as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	if c.Watch.DebounceMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates scan-level configuration. Rubric semantics (weight sum,
// unknown categories) are validated by the scoring engine at startup, before
// any scan runs.
func (c *Config) Validate() error {
	if c.Scan.MaxConcurrency < 1 {
		return fmt.Errorf("scan.max_concurrency must be >= 1, got %d", c.Scan.MaxConcurrency)
	}
	if c.Scan.PerExtractorTimeoutMs < 1 {
		return fmt.Errorf("scan.per_extractor_timeout_ms must be >= 1, got %d", c.Scan.PerExtractorTimeoutMs)
	}
	if c.Scan.MaxFileBytes < 1 {
		return fmt.Errorf("scan.max_file_bytes must be >= 1, got %d", c.Scan.MaxFileBytes)
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	return nil
}
