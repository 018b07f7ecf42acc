package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/opd-ai/vcable/samplebuffer"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPluginsPath is the build-time default plugin directory.
var DefaultPluginsPath = "/usr/local/lib/vcable"

// Environment variables consulted by Load and SearchPaths.
const (
	EnvPath     = "VCABLE_PATH"
	EnvPlugin   = "VCABLE_PLUGIN"
	EnvLogLevel = "VCABLE_LOG_LEVEL"
	EnvUnderrun = "VCABLE_UNDERRUN"
)

// Bounds for session settings.
const (
	MaxPorts       = 256
	MaxSampleSize  = 8
	MaxPluginIndex = 32
	MinBlockFrames = 1
	MaxBlockFrames = 65536
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Plugins  PluginsConfig `yaml:"plugins"`
	Session  SessionConfig `yaml:"session"`
}

// PluginsConfig controls plugin discovery.
type PluginsConfig struct {
	// Paths are searched after VCABLE_PATH and before DefaultPluginsPath.
	Paths  []string `yaml:"paths"`
	Prefix string   `yaml:"prefix"`
}

// SessionConfig describes the host side of a session. BlockFrames is the
// block size of the bundled loopback plugin.
type SessionConfig struct {
	Name        string `yaml:"name"`
	Ports       int    `yaml:"ports"`
	SampleSize  int    `yaml:"sample_size"`
	SampleRate  uint32 `yaml:"sample_rate"`
	Plugin      int    `yaml:"plugin"`
	BlockFrames int    `yaml:"block_frames"`
	Underrun    string `yaml:"underrun"`
}

// Default returns the built-in defaults: a stereo session of 32-bit float
// samples at 48 kHz with the first registered plugin selected.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Plugins: PluginsConfig{
			Prefix: "vcable-",
		},
		Session: SessionConfig{
			Name:        "vcable",
			Ports:       2,
			SampleSize:  4,
			SampleRate:  48000,
			Plugin:      1,
			BlockFrames: 256,
			Underrun:    samplebuffer.PolicySkip.String(),
		},
	}
}

// Load resolves defaults, the YAML file at path (skipped when path is empty)
// and environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":     "config.Load",
		"config_file":  path,
		"search_paths": cfg.SearchPaths(),
		"plugin":       cfg.Session.Plugin,
		"ports":        cfg.Session.Ports,
		"sample_size":  cfg.Session.SampleSize,
		"sample_rate":  cfg.Session.SampleRate,
		"underrun":     cfg.Session.Underrun,
	}).Debug("Configuration loaded")

	return cfg, nil
}

// Validate checks every bound.
func (c *Config) Validate() error {
	s := c.Session
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: session name is required", ErrInvalidConfig)
	case s.Ports < 1 || s.Ports > MaxPorts:
		return fmt.Errorf("%w: ports must be in [1, %d], got %d", ErrInvalidConfig, MaxPorts, s.Ports)
	case s.SampleSize < 1 || s.SampleSize > MaxSampleSize:
		return fmt.Errorf("%w: sample_size must be in [1, %d], got %d", ErrInvalidConfig, MaxSampleSize, s.SampleSize)
	case s.SampleRate == 0:
		return fmt.Errorf("%w: sample_rate is required", ErrInvalidConfig)
	case s.Plugin < 0 || s.Plugin > MaxPluginIndex:
		return fmt.Errorf("%w: plugin must be in [0, %d], got %d", ErrInvalidConfig, MaxPluginIndex, s.Plugin)
	case s.BlockFrames < MinBlockFrames || s.BlockFrames > MaxBlockFrames:
		return fmt.Errorf("%w: block_frames must be in [%d, %d], got %d", ErrInvalidConfig, MinBlockFrames, MaxBlockFrames, s.BlockFrames)
	}

	if _, err := samplebuffer.ParsePolicy(s.Underrun); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Underrun returns the parsed underrun policy.
func (c *Config) Underrun() samplebuffer.UnderrunPolicy {
	policy, _ := samplebuffer.ParsePolicy(c.Session.Underrun)
	return policy
}

// SearchPaths returns the plugin directories in precedence order:
// VCABLE_PATH, the configured paths, then DefaultPluginsPath.
func (c *Config) SearchPaths() []string {
	return SearchPaths(c.Plugins.Paths...)
}

// ApplyLogLevel sets the global logrus level.
func (c *Config) ApplyLogLevel() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	logrus.SetLevel(level)
	return nil
}

// SearchPaths returns VCABLE_PATH (when set), extra, then DefaultPluginsPath,
// without duplicates or empty entries.
func SearchPaths(extra ...string) []string {
	candidates := append([]string{os.Getenv(EnvPath)}, extra...)
	candidates = append(candidates, DefaultPluginsPath)

	seen := make(map[string]bool, len(candidates))
	paths := make([]string, 0, len(candidates))
	for _, p := range candidates {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

// applyEnvironmentOverrides updates cfg from VCABLE_* variables.
func applyEnvironmentOverrides(cfg *Config) {
	parsePluginSetting(cfg)
	parseLogLevelSetting(cfg)
	parseUnderrunSetting(cfg)
}

// parsePluginSetting reads VCABLE_PLUGIN, keeping the current value when the
// variable is not an integer in [0, MaxPluginIndex].
func parsePluginSetting(cfg *Config) {
	value := os.Getenv(EnvPlugin)
	if value == "" {
		return
	}

	index, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parsePluginSetting",
			"env_var":     EnvPlugin,
			"value":       value,
			"error":       err.Error(),
			"using_value": cfg.Session.Plugin,
		}).Warn("Failed to parse VCABLE_PLUGIN environment variable, using default")
		return
	}
	if index < 0 || index > MaxPluginIndex {
		logrus.WithFields(logrus.Fields{
			"function":    "parsePluginSetting",
			"env_var":     EnvPlugin,
			"value":       index,
			"min":         0,
			"max":         MaxPluginIndex,
			"using_value": cfg.Session.Plugin,
		}).Warn("VCABLE_PLUGIN value out of bounds, using default")
		return
	}
	cfg.Session.Plugin = index
}

// parseLogLevelSetting reads VCABLE_LOG_LEVEL.
func parseLogLevelSetting(cfg *Config) {
	value := os.Getenv(EnvLogLevel)
	if value == "" {
		return
	}
	if _, err := logrus.ParseLevel(value); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseLogLevelSetting",
			"env_var":     EnvLogLevel,
			"value":       value,
			"error":       err.Error(),
			"using_value": cfg.LogLevel,
		}).Warn("Failed to parse VCABLE_LOG_LEVEL environment variable, using default")
		return
	}
	cfg.LogLevel = value
}

// parseUnderrunSetting reads VCABLE_UNDERRUN.
func parseUnderrunSetting(cfg *Config) {
	value := os.Getenv(EnvUnderrun)
	if value == "" {
		return
	}
	if _, err := samplebuffer.ParsePolicy(value); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseUnderrunSetting",
			"env_var":     EnvUnderrun,
			"value":       value,
			"error":       err.Error(),
			"using_value": cfg.Session.Underrun,
		}).Warn("Failed to parse VCABLE_UNDERRUN environment variable, using default")
		return
	}
	cfg.Session.Underrun = value
}
