// Package config loads the collider tool configuration.
package config

import (
	"fmt"
	"sort"

	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/collider/internal/vfs"
)

// Config holds all settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Shape   ShapeConfig   `yaml:"shape"`
	Logging LoggingConfig `yaml:"logging"`
	Export  ExportConfig  `yaml:"export"`
}

// DataConfig lists where resources come from. Each group is an ordered
// list of directories and .grf archives; later entries take priority.
type DataConfig struct {
	Groups       map[string][]string `yaml:"groups"`
	DefaultGroup string              `yaml:"default_group"`
}

// ShapeConfig tunes shape building.
type ShapeConfig struct {
	QuantizedBVH bool `yaml:"quantized_bvh"`
	BVHLeafSize  int  `yaml:"bvh_leaf_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ExportConfig holds mesh export settings.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Default returns a Config with default values. Data.Groups is left empty
// so a file's groups replace the default source instead of merging with it;
// Load fills it in when nothing configured any.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			DefaultGroup: vfs.DefaultGroup,
		},
		Shape: ShapeConfig{
			QuantizedBVH: true,
			BVHLeafSize:  4,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Export: ExportConfig{
			OutputDir: ".",
		},
	}
}

// GroupNames returns the configured groups in sorted order.
func (c *Config) GroupNames() []string {
	names := make([]string, 0, len(c.Data.Groups))
	for name := range c.Data.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks values a file or flag could have set badly.
func (c *Config) Validate() error {
	if c.Shape.BVHLeafSize <= 0 {
		return fmt.Errorf("shape.bvh_leaf_size must be positive, got %d", c.Shape.BVHLeafSize)
	}
	if c.Data.DefaultGroup == "" {
		return fmt.Errorf("data.default_group must not be empty")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	for name, sources := range c.Data.Groups {
		if len(sources) == 0 {
			return fmt.Errorf("data.groups.%s has no sources", name)
		}
	}
	return nil
}
