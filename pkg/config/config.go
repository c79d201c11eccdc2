// Package config provides configuration loading and management for voxelcc.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"voxelcc/pkg/preprocess"
	"voxelcc/pkg/threshold"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for plane filtering
		NumCores int `yaml:"numCores"`

		// Rescale maps input intensities onto [0, 1] before filtering
		Rescale bool `yaml:"rescale"`
	} `yaml:"processing"`

	// Filters applied to every plane before thresholding
	Filters preprocess.Options `yaml:"filters"`

	// Segmentation parameters
	Segmentation struct {
		// ThresholdMethod is one of isodata, li, mean, minimum, otsu, triangle, yen
		ThresholdMethod string `yaml:"thresholdMethod"`

		// Connectivity is the neighbor rule, 1 (faces) up to the volume's
		// dimensionality (faces, edges and corners)
		Connectivity int `yaml:"connectivity"`

		// MinObjectSize removes components smaller than this many voxels
		// before the largest one is selected; 0 disables it
		MinObjectSize int `yaml:"minObjectSize"`
	} `yaml:"segmentation"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults writes the volume after each stage as slice images
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary slices are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Rescale = true

	cfg.Filters.MedianSize = 3

	cfg.Segmentation.ThresholdMethod = string(threshold.Otsu)
	cfg.Segmentation.Connectivity = 1
	cfg.Segmentation.MinObjectSize = 0

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if err := c.Filters.Validate(); err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	if _, err := threshold.ParseMethod(c.Segmentation.ThresholdMethod); err != nil {
		return err
	}
	if c.Segmentation.Connectivity < 1 {
		return fmt.Errorf("connectivity must be at least 1, got %d", c.Segmentation.Connectivity)
	}
	if c.Segmentation.MinObjectSize < 0 {
		return fmt.Errorf("minObjectSize must be non-negative, got %d", c.Segmentation.MinObjectSize)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
