package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	t.Setenv("CHATPOOL_HOME", "")
	os.Unsetenv("CHATPOOL_HOME")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".chatpool"), paths.Base)
	assert.Equal(t, filepath.Join(paths.Base, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(paths.Base, "accounts.db"), paths.Store)
	assert.Equal(t, filepath.Join(paths.Base, "logs"), paths.Logs)
}

func TestResolvePathsHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHATPOOL_HOME", dir)

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, dir, paths.Base)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), paths.Config)
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHATPOOL_HOME", filepath.Join(dir, "nested"))

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Base, paths.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
