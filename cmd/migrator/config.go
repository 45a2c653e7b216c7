package main

import (
	"fmt"
	"strings"

	"github.com/herdbook-io/herdbook/internal/config"
)

// Config holds the migrator's settings, read from the environment.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// MigrationTable tracks applied migrations.
	MigrationTable string
}

// LoadConfig reads the migrator configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    config.GetEnvStr("DATABASE_URL", ""),
		MigrationTable: config.GetEnvStr("MIGRATION_TABLE", "schema_migrations"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}

	if c.MigrationTable == "" {
		return fmt.Errorf("MIGRATION_TABLE cannot be empty")
	}

	return nil
}

// String renders the configuration with the database password masked, safe
// for logging.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DatabaseURL: %s, MigrationTable: %s}",
		maskDatabaseURL(c.DatabaseURL), c.MigrationTable)
}

// maskDatabaseURL replaces the password component of a connection URL with
// asterisks. The last "@" before the path delimits user info, in case the
// password itself contains "@".
func maskDatabaseURL(url string) string {
	authStart := strings.Index(url, "//")
	if authStart == -1 {
		return url
	}

	authStart += 2

	atPos := -1

	for i := authStart; i < len(url); i++ {
		if url[i] == '@' {
			atPos = i
		}

		if url[i] == '/' || url[i] == '?' || url[i] == '#' {
			break
		}
	}

	if atPos == -1 {
		return url
	}

	colonPos := strings.Index(url[authStart:atPos], ":")
	if colonPos == -1 {
		return url
	}

	colonPos += authStart

	if atPos-(colonPos+1) == 0 {
		return url
	}

	return url[:colonPos+1] + "***" + url[atPos:]
}
