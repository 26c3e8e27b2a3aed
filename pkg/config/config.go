// Package config provides configuration loading and management for livewidget.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"livewidget/internal/models"
	"livewidget/pkg/loader"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Display parameters
	Display struct {
		// HistogramBins is the bucket count of the histogram
		HistogramBins int `yaml:"histogramBins"`

		// LogScale presents counts as log10 by default
		LogScale bool `yaml:"logScale"`
	} `yaml:"display"`

	// Processing parameters
	Processing struct {
		// DespeckleThreshold is how far a pixel may exceed its neighborhood
		// median before it is treated as a spike
		DespeckleThreshold float64 `yaml:"despeckleThreshold"`

		// ReferenceDir is where darkfield, flat-field and operand files are
		// looked up
		ReferenceDir string `yaml:"referenceDir"`

		// ReferenceCacheSize bounds the number of cached reference buffers
		ReferenceCacheSize int `yaml:"referenceCacheSize"`
	} `yaml:"processing"`

	// Loader parameters for headerless input
	Loader struct {
		// RawFormat is the sample type of raw files, e.g. "<u4" or ">i2"
		RawFormat string `yaml:"rawFormat"`

		RawWidth  int `yaml:"rawWidth"`
		RawHeight int `yaml:"rawHeight"`
	} `yaml:"loader"`

	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Display.HistogramBins = 256
	cfg.Display.LogScale = false

	cfg.Processing.DespeckleThreshold = 10
	cfg.Processing.ReferenceDir = "."
	cfg.Processing.ReferenceCacheSize = 8

	cfg.Loader.RawFormat = "<u4"

	cfg.Logging.Level = "info"

	return cfg
}

// Validate checks values that would otherwise fail deep inside processing
func (c *Config) Validate() error {
	if c.Display.HistogramBins <= 0 {
		return fmt.Errorf("%w: histogramBins must be positive, got %d", models.ErrInvalidArgument, c.Display.HistogramBins)
	}
	if c.Processing.DespeckleThreshold < 0 {
		return fmt.Errorf("%w: despeckleThreshold must not be negative", models.ErrInvalidArgument)
	}
	if c.Loader.RawWidth < 0 || c.Loader.RawHeight < 0 {
		return fmt.Errorf("%w: negative raw dimensions", models.ErrInvalidArgument)
	}
	return nil
}

// LoaderOptions returns the decoder options for headerless input
func (c *Config) LoaderOptions() *loader.Options {
	return &loader.Options{
		Width:  c.Loader.RawWidth,
		Height: c.Loader.RawHeight,
		Format: c.Loader.RawFormat,
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
