// Package config loads the connection settings this engine's convenience
// constructors need: struct tags consumed by caarlos0/env, with optional
// .env overlay via joho/godotenv.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dbschema/migrator/internal/migrator"
)

// Config holds everything needed to stand up an Engine against a live
// database without the caller hand-assembling a pool.
type Config struct {
	// InstanceID distinguishes this process in structured logs; it is not
	// part of the tracking row's identity (that stays (app, name)).
	InstanceID string `env:"MIGRATOR_INSTANCE_ID"`

	LogLevel string `env:"MIGRATOR_LOG_LEVEL" envDefault:"info"`

	PostgresURL string `env:"MIGRATOR_POSTGRES_URL"`
	SQLitePath  string `env:"MIGRATOR_SQLITE_PATH"`

	// LockTimeoutSeconds bounds how long MySQL-style named-lock waits are
	// willing to block; unused by the Postgres/SQLite adapters this
	// module ships, but kept here as the knob a MySQL adapter would read.
	LockTimeoutSeconds int `env:"MIGRATOR_LOCK_TIMEOUT_SECONDS" envDefault:"0"`
}

// Load reads Config from the process environment, optionally overlaid with
// a .env file at envPath (ignored if envPath is empty or the file does not
// exist).
func Load(envPath string) (*Config, error) {
	cfg := &Config{}

	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			envMap, readErr := godotenv.Read(envPath)
			if readErr != nil {
				return nil, &migrator.ConfigConversionFailureError{Field: "envPath", Cause: readErr}
			}
			environ := make(map[string]string)
			for _, kv := range os.Environ() {
				if k, v, ok := strings.Cut(kv, "="); ok {
					environ[k] = v
				}
			}
			for k, v := range envMap {
				environ[k] = v
			}
			if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
				return nil, &migrator.ConfigConversionFailureError{Field: "environment", Cause: err}
			}
			fillDefaults(cfg)
			return cfg, nil
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, &migrator.ConfigConversionFailureError{Field: "environment", Cause: err}
	}
	fillDefaults(cfg)
	return cfg, nil
}

func fillDefaults(cfg *Config) {
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
}

// RequireDatabase returns nil if a database target is configured, or
// EnvMissingError if neither PostgresURL nor SQLitePath is set.
func (c *Config) RequireDatabase() error {
	if c.PostgresURL != "" || c.SQLitePath != "" {
		return nil
	}
	return &migrator.EnvMissingError{Name: "MIGRATOR_POSTGRES_URL or MIGRATOR_SQLITE_PATH"}
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{InstanceID: %s, LogLevel: %s}", c.InstanceID, c.LogLevel)
}
