package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	// Verify the config template contains expected sections.
	require.Contains(t, configTemplate, "sanity:")
	require.Contains(t, configTemplate, "project_id:")
	require.Contains(t, configTemplate, "dataset:")
	require.Contains(t, configTemplate, "webflow:")
	require.Contains(t, configTemplate, "site_id:")
	require.Contains(t, configTemplate, "token:")
	require.Contains(t, configTemplate, "locales:")
	require.Contains(t, configTemplate, "primary:")
	require.Contains(t, configTemplate, "secondary:")
	require.Contains(t, configTemplate, "collections:")
	require.Contains(t, configTemplate, "artworks:")
	require.Contains(t, configTemplate, "creators:")
}

func TestRunInitCreatesConfig(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().

	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	err := runInit()
	require.NoError(t, err)

	configPath := filepath.Join(tmpHome, ".artbridge", "config.yaml")
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, configTemplate, string(data))

	// Check file permissions (0600).
	info, err := os.Stat(configPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Check directory permissions (0700).
	dirInfo, err := os.Stat(filepath.Join(tmpHome, ".artbridge"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestRunInitFailsIfConfigExists(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().

	tmpHome := t.TempDir()
	configDir := filepath.Join(tmpHome, ".artbridge")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("existing config"), 0o600))

	t.Setenv("HOME", tmpHome)

	err := runInit()

	require.Error(t, err)
	require.Contains(t, err.Error(), "config file already exists")
}

func TestSplitTypes(t *testing.T) {
	t.Parallel()

	require.Nil(t, splitTypes(""))
	require.Equal(t, []string{"creator", "artwork"}, splitTypes("creator, artwork"))
	require.Equal(t, []string{"material"}, splitTypes("material,,"))
}
