// Package config provides configuration loading, environment overrides,
// validation and hot reload.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Definitions DefsConfig     `yaml:"definitions"`
	Remotes     []RemoteConfig `yaml:"remotes"`
	Logging     LoggingConfig  `yaml:"logging"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP query endpoint.
type ServerConfig struct {
	Host         string        `yaml:"host" env:"TETHER_HOST"`
	Port         int           `yaml:"port" env:"TETHER_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"TETHER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"TETHER_WRITE_TIMEOUT"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the SQLite document store.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"TETHER_DB_PATH"`
}

// DefsConfig configures component definition loading.
type DefsConfig struct {
	Dir string `yaml:"dir" env:"TETHER_DEFINITIONS_DIR"`
}

// RemoteConfig maps an entity name to the query endpoint serving it.
type RemoteConfig struct {
	Component string `yaml:"component"`
	URL       string `yaml:"url"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"TETHER_LOG_LEVEL"`
	Format string `yaml:"format" env:"TETHER_LOG_FORMAT"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics exposure.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"TETHER_METRICS_ENABLED"`
}

// Load reads and validates configuration from a YAML file, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with sensible defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         7380,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database:    DatabaseConfig{Path: "tether.db"},
		Definitions: DefsConfig{Dir: "components"},
		Logging:     LoggingConfig{Level: "info", Format: "json"},
		Metrics:     MetricsConfig{Enabled: true},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, "database path is required")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("logging format %q must be json or console", c.Logging.Format))
	}
	seen := map[string]bool{}
	for _, r := range c.Remotes {
		if r.Component == "" {
			errs = append(errs, "remote entry with empty component name")
			continue
		}
		if r.URL == "" {
			errs = append(errs, fmt.Sprintf("remote %q has no url", r.Component))
		}
		if seen[r.Component] {
			errs = append(errs, fmt.Sprintf("remote %q declared twice", r.Component))
		}
		seen[r.Component] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
