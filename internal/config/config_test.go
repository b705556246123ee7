package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "assay" {
		t.Errorf("expected Name=assay, got %s", cfg.Name)
	}
	if cfg.Scan.MaxConcurrency != 4 {
		t.Errorf("expected MaxConcurrency=4, got %d", cfg.Scan.MaxConcurrency)
	}
	if cfg.Scan.PerExtractorTimeoutMs != 10000 {
		t.Errorf("expected PerExtractorTimeoutMs=10000, got %d", cfg.Scan.PerExtractorTimeoutMs)
	}

	sum := 0.0
	for _, w := range cfg.Rubric.Weights {
		sum += w
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("default rubric weights must sum to 1.0, got %f", sum)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "assay.yaml")

	cfg := DefaultConfig()
	cfg.Scan.MaxConcurrency = 9
	cfg.Scan.IgnorePatterns = []string{".git", "testdata"}
	cfg.Rubric.Weights["security"] = 0.5

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, loaded.Scan.MaxConcurrency)
	assert.Equal(t, []string{".git", "testdata"}, loaded.Scan.IgnorePatterns)
	assert.Equal(t, 0.5, loaded.Rubric.Weights["security"])
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Scan.MaxConcurrency, cfg.Scan.MaxConcurrency)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [not: a: map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("max concurrency", func(t *testing.T) {
		t.Setenv("ASSAY_MAX_CONCURRENCY", "16")
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 16, cfg.Scan.MaxConcurrency)
	})

	t.Run("invalid value ignored", func(t *testing.T) {
		t.Setenv("ASSAY_MAX_CONCURRENCY", "banana")
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Scan.MaxConcurrency)
	})

	t.Run("extractor timeout", func(t *testing.T) {
		t.Setenv("ASSAY_EXTRACTOR_TIMEOUT_MS", "2500")
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 2500, cfg.Scan.PerExtractorTimeoutMs)
	})

	t.Run("store path", func(t *testing.T) {
		t.Setenv("ASSAY_DB", "/tmp/custom.db")
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "/tmp/custom.db", cfg.Store.Path)
	})

	t.Run("env beats file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "assay.yaml")
		cfg := DefaultConfig()
		cfg.Scan.MaxConcurrency = 2
		require.NoError(t, cfg.Save(path))

		t.Setenv("ASSAY_MAX_CONCURRENCY", "32")
		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 32, loaded.Scan.MaxConcurrency)
	})
}

func TestGetExtractorTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "10s", cfg.GetExtractorTimeout().String())

	cfg.Scan.PerExtractorTimeoutMs = 0
	assert.Equal(t, "10s", cfg.GetExtractorTimeout().String(), "zero falls back to default")

	cfg.Scan.PerExtractorTimeoutMs = 250
	assert.Equal(t, "250ms", cfg.GetExtractorTimeout().String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero concurrency", func(c *Config) { c.Scan.MaxConcurrency = 0 }, true},
		{"negative timeout", func(c *Config) { c.Scan.PerExtractorTimeoutMs = -1 }, true},
		{"zero file cap", func(c *Config) { c.Scan.MaxFileBytes = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
