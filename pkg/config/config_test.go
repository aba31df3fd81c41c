package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("CONFIG_DIRECTORY", t.TempDir())

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DatabaseFilePath)
	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.Equal(t, 3690, cfg.ServerPort)
	assert.Equal(t, 1, cfg.WorkerProcesses)
	assert.NotNil(t, cfg.UserConfig)
}

func TestLoadUserConfigDefaults(t *testing.T) {
	t.Parallel()

	userConfig, err := loadUserConfig(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.Len(t, userConfig.Sources, 1)

	sc := userConfig.Sources[0]
	assert.Equal(t, "openlibrary", sc.Name)
	assert.Equal(t, "api", sc.Kind)
	assert.Equal(t, 0.8, sc.TrustLevel)
	assert.Equal(t, 30, sc.RequestsPerMinute)
	assert.False(t, sc.Disabled)
}

func TestLoadUserConfigFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	contents := `{
  "sources": [
    {"name": "openlibrary", "kind": "api", "trust_level": 0.5, "requests_per_minute": 10},
    {"name": "localfiles", "kind": "extractor", "trust_level": 0.9}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	userConfig, err := loadUserConfig(path)
	require.NoError(t, err)
	require.Len(t, userConfig.Sources, 2)
	assert.Equal(t, 0.5, userConfig.Sources[0].TrustLevel)
	assert.Equal(t, 10, userConfig.Sources[0].RequestsPerMinute)
	assert.Equal(t, "extractor", userConfig.Sources[1].Kind)
	assert.Nil(t, userConfig.SourceByName("nope"))
	assert.NotNil(t, userConfig.SourceByName("localfiles"))
}

func TestSaveUserConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	userConfig := loadDefaultUserConfig()
	userConfig.Sources[0].RequestsPerMinute = 12

	require.NoError(t, saveUserConfigFile(userConfig, path))

	loaded, err := loadUserConfig(path)
	require.NoError(t, err)
	require.Len(t, loaded.Sources, 1)
	assert.Equal(t, 12, loaded.Sources[0].RequestsPerMinute)
}
