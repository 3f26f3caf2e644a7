// Package config loads the typed configuration of the cyrcle tools from a
// YAML or TOML file, on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level configuration
type Config struct {
	Search nearest.Options `yaml:"search" toml:"search"`
	Store  StoreConfig     `yaml:"store" toml:"store"`
	Sync   SyncConfig      `yaml:"sync" toml:"sync"`
	Server ServerConfig    `yaml:"server" toml:"server"`
	Log    LogConfig       `yaml:"log" toml:"log"`
}

// StoreConfig selects a spot store. Path is the snapshot file for the
// memory driver and the database file for sqlite.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// SyncConfig controls offline tile downloads from the remote store
type SyncConfig struct {
	Remote        StoreConfig `yaml:"remote" toml:"remote"`
	Concurrency   int         `yaml:"concurrency" toml:"concurrency"`
	RatePerSecond float64     `yaml:"rate_per_second" toml:"rate_per_second"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// LogConfig holds logging settings. Format is "text" or "json".
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration that works without any file
func Default() *Config {
	return &Config{
		Search: nearest.DefaultOptions(),
		Store: StoreConfig{
			Driver: DriverMemory,
			Path:   "data/spots.gob.zst",
		},
		Sync: SyncConfig{
			Remote: StoreConfig{
				Driver: DriverPostgres,
				DSN:    "host=localhost port=5432 user=cyrcle dbname=cyrcle sslmode=disable",
			},
			Concurrency:   4,
			RatePerSecond: 20,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path over the defaults. The format is chosen by
// extension (.yaml, .yml or .toml). An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions
func (c *Config) Validate() error {
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("%w: search: %v", ErrInvalidConfig, err)
	}
	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("%w: store: %v", ErrInvalidConfig, err)
	}
	if c.Sync.Concurrency < 0 {
		return fmt.Errorf("%w: sync: concurrency must not be negative", ErrInvalidConfig)
	}
	if c.Sync.RatePerSecond < 0 {
		return fmt.Errorf("%w: sync: rate must not be negative", ErrInvalidConfig)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log: unknown format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

func (s StoreConfig) validate() error {
	switch s.Driver {
	case DriverMemory, DriverSQLite:
		if s.Path == "" {
			return fmt.Errorf("driver %s needs a path", s.Driver)
		}
	case DriverPostgres:
		if s.DSN == "" {
			return errors.New("driver postgres needs a dsn")
		}
	default:
		return fmt.Errorf("unknown driver %q", s.Driver)
	}
	return nil
}
