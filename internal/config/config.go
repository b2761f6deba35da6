// Package config holds the command-line tool's environment configuration,
// logger construction and the network shape file format.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"

	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/parallel"
)

// Config is read from the environment; command-line flags override it.
type Config struct {
	Out       string `env:"SPLATEXPORT_OUT"        envDefault:"out"`
	Network   string `env:"SPLATEXPORT_NETWORK"`
	Workers   int    `env:"SPLATEXPORT_WORKERS"    envDefault:"0"`
	Clean     bool   `env:"SPLATEXPORT_CLEAN"`
	LogLevel  string `env:"SPLATEXPORT_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"SPLATEXPORT_LOG_FORMAT" envDefault:"text"`
}

// FromEnv loads configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks option values.
func (c Config) Validate() error {
	if c.Out == "" {
		return errors.New("output directory must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// Parallel maps Workers to a worker configuration: 0 uses every CPU and 1
// writes sequentially.
func (c Config) Parallel() parallel.Config {
	switch {
	case c.Workers == 0:
		return parallel.DefaultConfig()
	case c.Workers == 1:
		return parallel.Sequential()
	default:
		return parallel.Config{Enabled: true, NumWorkers: c.Workers}
	}
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds a text or JSON slog logger writing to w.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}

// LoadNetworkShape reads a network shape from a YAML file:
//
//	feature_dim: 32
//	mlp_width: 256
//	mlp_depth: 8
//
// Unknown keys are rejected and every value must be positive.
func LoadNetworkShape(path string) (model.NetworkShape, error) {
	//nolint:gosec // G304: Config paths come from user input by design
	data, err := os.ReadFile(path)
	if err != nil {
		return model.NetworkShape{}, fmt.Errorf("failed to read network file: %w", err)
	}
	return ParseNetworkShape(data)
}

// ParseNetworkShape decodes a YAML network shape document.
func ParseNetworkShape(data []byte) (model.NetworkShape, error) {
	var shape model.NetworkShape
	if err := yaml.UnmarshalWithOptions(data, &shape, yaml.DisallowUnknownField()); err != nil {
		return model.NetworkShape{}, fmt.Errorf("%w: %w", model.ErrNetworkShape, err)
	}
	if err := shape.Validate(); err != nil {
		return model.NetworkShape{}, err
	}
	return shape, nil
}

// MarshalNetworkShape encodes a network shape as YAML.
func MarshalNetworkShape(shape model.NetworkShape) ([]byte, error) {
	return yaml.Marshal(shape)
}
