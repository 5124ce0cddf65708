package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *c)
	assert.Equal(t, byte(0x42), c.Key())
	assert.Equal(t, 64, c.Limits.History)
	assert.Equal(t, 4096, c.Limits.MaxOutput)
}

// TestLoadFile tests TOML and YAML files over the defaults
func TestLoadFile(t *testing.T) {
	t.Run("toml", func(t *testing.T) {
		path := writeFile(t, "rexec.toml", `
[group]
size = 6
workers = 3

[client]
interactive = true

[log]
level = "debug"
`)
		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 6, c.Group.Size)
		assert.Equal(t, 3, c.Group.Workers)
		assert.True(t, c.Client.Interactive)
		assert.Equal(t, "debug", c.Log.Level)
		assert.Equal(t, 50, c.Client.BenchmarkIterations)
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeFile(t, "rexec.yaml", "audit:\n  dir: /var/log/rexec\n  csv: false\nmask:\n  key: 7\n")
		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/log/rexec", c.Audit.Dir)
		assert.False(t, c.Audit.CSV)
		assert.Equal(t, byte(7), c.Key())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		require.Error(t, err)
	})
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("REXEC_GROUP_SIZE", "8")
	t.Setenv("REXEC_WORKER_SHELL", "/bin/bash")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, c.Group.Size)
	assert.Equal(t, "/bin/bash", c.Worker.Shell)
}

// TestValidate tests range checks
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Group.Workers = -1 }},
		{"output too large", func(c *Config) { c.Limits.MaxOutput = 8192 }},
		{"output too small", func(c *Config) { c.Limits.MaxOutput = 1 }},
		{"zero history", func(c *Config) { c.Limits.History = 0 }},
		{"key overflow", func(c *Config) { c.Mask.Key = 256 }},
		{"negative benchmark", func(c *Config) { c.Client.BenchmarkIterations = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}

	c := Default()
	assert.NoError(t, c.Validate())
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, "bad.toml", "[limits]\nhistory = 0\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

// TestWriteDefault tests that the printed defaults load back unchanged
func TestWriteDefault(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDefault(&buf))
	assert.Contains(t, buf.String(), "[group]")
	assert.Contains(t, buf.String(), "benchmark_iterations = 50")

	path := writeFile(t, "defaults.toml", buf.String())
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), *c)
}
