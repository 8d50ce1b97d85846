package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	c := DefaultConfig()
	c.Server.URL = ""
	require.ErrorContains(t, c.Validate(), "server.url")

	c = DefaultConfig()
	c.Diff.MaxTests = 0
	require.ErrorContains(t, c.Validate(), "max_tests")

	c = DefaultConfig()
	c.Log.Level = "verbose"
	require.ErrorContains(t, c.Validate(), "log.level")
}

func TestLoadFromFile_PartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server:\n  url: https://judge.example/api\ndiff:\n  checker: rcmp\n"), 0o600))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://judge.example/api", c.Server.URL)
	assert.Equal(t, "rcmp", c.Diff.Checker)
	// Untouched fields keep their defaults.
	assert.Equal(t, 100, c.Diff.MaxTests)
	assert.Equal(t, 30*time.Second, c.Server.HeartbeatTimeout)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	c := DefaultConfig()
	c.Auth.Token = "tok-secret"
	c.Diff.MaxTests = 42
	require.NoError(t, c.SaveToFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-secret", got.Auth.Token)
	assert.Equal(t, 42, got.Diff.MaxTests)
}

func TestMergePrecedence(t *testing.T) {
	base := DefaultConfig()
	base.Merge(&Config{
		Server: ServerConfig{URL: "https://other.example/api"},
		Auth:   AuthConfig{Token: "tok-2"},
	})
	assert.Equal(t, "https://other.example/api", base.Server.URL)
	assert.Equal(t, "tok-2", base.Auth.Token)
	assert.Equal(t, "wcmp", base.Diff.Checker)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvServer, "https://env.example/api")
	t.Setenv(EnvToken, "tok-env")
	t.Setenv(EnvWorkspace, "/tmp/ws")

	c, err := NewLoader(nil).Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/api", c.Server.URL)
	assert.Equal(t, "tok-env", c.Auth.Token)
	assert.Equal(t, "/tmp/ws", c.Workspace.Dir)
}

func TestLoader_UserConfigLayering(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvServer, "")
	t.Setenv(EnvToken, "")
	t.Setenv(EnvWorkspace, "")

	dir := filepath.Join(home, UserConfigDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, UserConfigFile),
		[]byte("auth:\n  token: tok-file\n"), 0o600))

	c, err := NewLoader(nil).Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-file", c.Auth.Token)
	assert.Equal(t, filepath.Join(home, defaultWorkspaceDir), c.Workspace.Dir)
}

func TestLoader_SaveTokenKeepsSettings(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	l := NewLoader(nil)
	dir := filepath.Join(home, UserConfigDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(l.UserConfigPath(),
		[]byte("diff:\n  checker: ncmp\n"), 0o600))

	require.NoError(t, l.SaveToken("tok-new"))

	c, err := LoadFromFile(l.UserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, "tok-new", c.Auth.Token)
	assert.Equal(t, "ncmp", c.Diff.Checker)
}
