package formula

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the process-wide engine settings read by Init.
type Config struct {
	// DefaultUnit is the length unit suffix exposed as Settings.DefaultUnit
	// and used by Units.Length.
	DefaultUnit string `yaml:"default_unit"`

	// GridSize is formula text for the Settings.GridSize distance.
	GridSize string `yaml:"grid_size"`

	// NamedColors registers the CSS color names as constants.
	NamedColors bool `yaml:"named_colors"`

	// Constants maps extra constant names to literal formula text.
	Constants map[string]string `yaml:"constants"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the settings used when no file is given
func DefaultConfig() Config {
	return Config{
		DefaultUnit: "mm",
		GridSize:    "5mm",
		NamedColors: true,
		LogLevel:    "info",
	}
}

// LoadConfig starts from DefaultConfig, applies the YAML file at path when
// it exists, then SKETCH_* environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("load config file: %w", err)
		default:
			if cfg, err = ParseConfig(data); err != nil {
				return cfg, err
			}
		}
	}
	loadConfigFromEnv(&cfg)
	return cfg, cfg.Validate()
}

// ParseConfig decodes YAML over DefaultConfig
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func loadConfigFromEnv(cfg *Config) {
	if v := os.Getenv("SKETCH_DEFAULT_UNIT"); v != "" {
		cfg.DefaultUnit = v
	}
	if v := os.Getenv("SKETCH_GRID_SIZE"); v != "" {
		cfg.GridSize = v
	}
	if v := os.Getenv("SKETCH_NAMED_COLORS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.NamedColors = b
		}
	}
	if v := os.Getenv("SKETCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks the unit and log level names
func (c Config) Validate() error {
	if _, ok := LengthUnit(c.DefaultUnit); !ok {
		return fmt.Errorf("config: unknown default unit %q", c.DefaultUnit)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
