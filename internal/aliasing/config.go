// Package aliasing maps legacy category names to system category slugs.
//
// Herds migrated from older record-keeping systems often carry category
// names that differ from the canonical ones ("Bois 2 anos" vs "Bois - 2A.").
// The seeder uses this mapping to adopt an existing category instead of
// creating a duplicate next to it.
package aliasing

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/herdbook-io/herdbook/internal/config"
)

// Config holds category alias configuration loaded from .herdbook.yaml.
type Config struct {
	// CategoryAliases maps a legacy category name to the system slug it
	// stands for. Names are matched case- and whitespace-insensitively.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	CategoryAliases map[string]string `yaml:"category_aliases"`
}

// DefaultConfigPath is the default location for the herdbook configuration file.
const DefaultConfigPath = ".herdbook.yaml"

// ConfigPathEnvVar is the environment variable name for a custom config path.
const ConfigPathEnvVar = "HERDBOOK_CONFIG_PATH"

// LoadConfig loads alias configuration from a YAML file at the given path.
//
// Behavior:
//   - Returns empty config (not error) if the file doesn't exist - aliases
//     are optional
//   - Returns empty config + logs a warning if the YAML is invalid
//   - Returns populated config on success
//
// Graceful degradation keeps the seeder usable on databases that never had
// a legacy naming scheme.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		CategoryAliases: make(map[string]string),
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Config file not found, continuing without aliases",
				slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("Failed to read config file, continuing without aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Failed to parse config file, continuing without aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return &Config{CategoryAliases: make(map[string]string)}, nil
	}

	if cfg.CategoryAliases == nil {
		cfg.CategoryAliases = make(map[string]string)
	}

	return cfg, nil
}

// LoadConfigFromEnv loads config from the path in HERDBOOK_CONFIG_PATH,
// falling back to ".herdbook.yaml" in the current directory.
func LoadConfigFromEnv() (*Config, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadConfig(path)
}
