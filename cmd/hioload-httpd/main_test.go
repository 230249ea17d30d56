package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs([]string{})
		rootCmd.SetOut(nil)
		configPath = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hioload-httpd version")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.toml")
	require.NoError(t, os.WriteFile(good, []byte(`
[[server]]
port = 8080
  [[server.location]]
  path = "/"
  root = "/srv/www"
`), 0o644))

	out, err := execute(t, "validate", "--conf", good)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration ok: 1 server(s)")

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[log]\nlevel = \"info\"\n"), 0o644))
	_, err = execute(t, "validate", "-c", bad)
	assert.Error(t, err)
}

func TestConfigPathFromEnvironment(t *testing.T) {
	t.Setenv("HIOLOAD_HTTPD_CONFIG", "/etc/hioload.yaml")
	configPath = ""
	assert.Equal(t, "/etc/hioload.yaml", getConfigPath())
	configPath = "x.toml"
	t.Cleanup(func() { configPath = "" })
	assert.Equal(t, "x.toml", getConfigPath())
}
