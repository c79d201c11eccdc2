package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Segmentation.Connectivity != 1 {
		t.Errorf("Expected default connectivity 1, got %d", cfg.Segmentation.Connectivity)
	}
	if cfg.Segmentation.ThresholdMethod != "otsu" {
		t.Errorf("Expected default method otsu, got %s", cfg.Segmentation.ThresholdMethod)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.NumCores != DefaultConfig().Processing.NumCores {
		t.Errorf("Expected defaults for missing file")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "voxelcc.yaml")

	cfg := DefaultConfig()
	cfg.Segmentation.Connectivity = 3
	cfg.Segmentation.ThresholdMethod = "li"
	cfg.Segmentation.MinObjectSize = 64
	cfg.Filters.GaussianSigma = 1.5
	cfg.Filters.Bilateral.SigmaSpace = 4
	cfg.Filters.Bilateral.SigmaColor = 0.1
	cfg.Filters.Edge = "scharr"
	cfg.Output.Verbose = false

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Segmentation != cfg.Segmentation {
		t.Errorf("Segmentation mismatch: %+v vs %+v", loaded.Segmentation, cfg.Segmentation)
	}
	if loaded.Filters != cfg.Filters {
		t.Errorf("Filters mismatch: %+v vs %+v", loaded.Filters, cfg.Filters)
	}
	if loaded.Output.Verbose {
		t.Error("Expected verbose=false after reload")
	}
}

func TestLoadConfigPartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("segmentation:\n  connectivity: 2\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Segmentation.Connectivity != 2 {
		t.Errorf("Expected connectivity 2, got %d", cfg.Segmentation.Connectivity)
	}
	if cfg.Segmentation.ThresholdMethod != "otsu" {
		t.Errorf("Expected default method to survive, got %s", cfg.Segmentation.ThresholdMethod)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("segmentation: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"cores", func(c *Config) { c.Processing.NumCores = 0 }},
		{"method", func(c *Config) { c.Segmentation.ThresholdMethod = "kapur" }},
		{"connectivity", func(c *Config) { c.Segmentation.Connectivity = 0 }},
		{"min size", func(c *Config) { c.Segmentation.MinObjectSize = -1 }},
		{"median", func(c *Config) { c.Filters.MedianSize = 4 }},
		{"edge", func(c *Config) { c.Filters.Edge = "laplace" }},
		{"bilateral", func(c *Config) { c.Filters.Bilateral.SigmaColor = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}
