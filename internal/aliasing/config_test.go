package aliasing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Empty(t, cfg.CategoryAliases)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".herdbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte{}, 0o600))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Empty(t, cfg.CategoryAliases)
}

func TestLoadConfigValidYAML(t *testing.T) {
	content := `category_aliases:
  "Bois 2 anos": bois-2a
  "Bezerro Macho": bezerro-macho
`
	path := filepath.Join(t.TempDir(), ".herdbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Len(t, cfg.CategoryAliases, 2)
	assert.Equal(t, "bois-2a", cfg.CategoryAliases["Bois 2 anos"])
	assert.Equal(t, "bezerro-macho", cfg.CategoryAliases["Bezerro Macho"])
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".herdbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte("category_aliases: [not: a: map"), 0o600))

	cfg, err := LoadConfig(path)

	// Malformed aliases degrade to none rather than blocking the seeder.
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Empty(t, cfg.CategoryAliases)
}

func TestLoadConfigFromEnv(t *testing.T) {
	content := "category_aliases:\n  \"Vacas Paridas\": vacas\n"
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadConfigFromEnv()

	require.NoError(t, err)
	assert.Equal(t, "vacas", cfg.CategoryAliases["Vacas Paridas"])
}
