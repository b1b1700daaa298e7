// Package config defines levelgraph settings and how they are loaded.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/DrSkyle/levelgraph/pkg/level"
	"github.com/DrSkyle/levelgraph/pkg/solver"
)

// Defaults.
const (
	DefaultRegion  = "us-east-1"
	DefaultWorkers = 4
	EnvPrefix      = "LEVELGRAPH"
	FileName       = ".levelgraph.yaml"
)

// TelemetryConfig controls trace export.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is an OTLP/HTTP URL. Empty falls back to
	// OTEL_EXPORTER_OTLP_ENDPOINT, then to discarding spans.
	Endpoint string `mapstructure:"endpoint"`
}

// LintConfig controls the lint command.
type LintConfig struct {
	// Rules is a YAML rule file used instead of the built-in rules.
	Rules string `mapstructure:"rules"`
	// Strict fails on warnings as well as errors.
	Strict bool `mapstructure:"strict"`
}

// Config is the full set of settings.
type Config struct {
	// Dir is a local directory or an s3://bucket/prefix URL.
	Dir        string `mapstructure:"dir"`
	Start      string `mapstructure:"start"`
	Region     string `mapstructure:"region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	// Workers bounds concurrent level file reads.
	Workers  int  `mapstructure:"workers"`
	Verbose  bool `mapstructure:"verbose"`
	JSONLogs bool `mapstructure:"json_logs"`

	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Solver    solver.Options  `mapstructure:"solver"`
	Lint      LintConfig      `mapstructure:"lint"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Dir:       ".",
		Start:     level.DefaultStart,
		Region:    DefaultRegion,
		Workers:   DefaultWorkers,
		Telemetry: TelemetryConfig{Enabled: true},
		Solver:    solver.DefaultOptions(),
	}
}

// NewViper returns a viper instance reading LEVELGRAPH_* variables, with
// nested keys joined by underscores (LEVELGRAPH_SOLVER_DISCOUNT).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers every key with its default so environment
// variables and Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("dir", d.Dir)
	v.SetDefault("start", d.Start)
	v.SetDefault("region", d.Region)
	v.SetDefault("s3_endpoint", d.S3Endpoint)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("json_logs", d.JSONLogs)
	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("solver.discount", d.Solver.Discount)
	v.SetDefault("solver.epsilon", d.Solver.Epsilon)
	v.SetDefault("solver.max_iterations", d.Solver.MaxIterations)
	v.SetDefault("lint.rules", d.Lint.Rules)
	v.SetDefault("lint.strict", d.Lint.Strict)
}

// ReadFile reads path, or ~/.levelgraph.yaml when path is empty. A missing
// default file is not an error; a missing explicit file is.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, FileName)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		v.SetConfigType("yaml")
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("config: dir must not be empty")
	}
	if c.Start == "" {
		return errors.New("config: start must not be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers %d must be positive", c.Workers)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("config: solver: %w", err)
	}
	return nil
}

// LevelOptions returns the loader options for c.
func (c Config) LevelOptions() level.Options {
	return level.Options{Start: c.Start, Workers: c.Workers}
}
