// Package config loads the server configuration from the environment and
// an optional .env file.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/syssam/gqlmap/dialect"
)

// Prefix of every environment variable.
const Prefix = "GQLMAP"

// Config is the configuration of gqlmapd.
type Config struct {
	Addr     string `envconfig:"ADDR" default:":8080"`
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Dialect string `envconfig:"DIALECT" default:"sqlite"`
	DSN     string `envconfig:"DSN" default:"file:gqlmap.db?_pragma=foreign_keys(1)"`
	Mapping string `envconfig:"MAPPING" required:"true"`

	// MaxLimit bounds the limit argument of page queries.
	MaxLimit int `envconfig:"MAX_LIMIT" default:"500"`
	// Migrate creates missing tables and columns on startup.
	Migrate bool `envconfig:"MIGRATE" default:"false"`
	// Watch rebuilds the schema when the mapping file changes.
	Watch     bool          `envconfig:"WATCH" default:"false"`
	SlowQuery time.Duration `envconfig:"SLOW_QUERY" default:"200ms"`

	Playground bool `envconfig:"PLAYGROUND" default:"true"`
}

// IsProduction reports if the server runs in production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	switch c.Dialect {
	case dialect.SQLite, dialect.Postgres, dialect.MySQL:
	default:
		return fmt.Errorf("config: unsupported dialect %q", c.Dialect)
	}
	if c.MaxLimit <= 0 {
		return fmt.Errorf("config: max limit must be positive, got %d", c.MaxLimit)
	}
	return nil
}

// Load reads the configuration. Values from the files, .env by default,
// never override variables already set in the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// Missing files are fine.
		_ = godotenv.Load(f)
	}
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
