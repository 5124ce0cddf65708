package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	l := ForRank(newLogger(Config{Level: "info", Format: "json"}, &buf), "worker", 2)

	l.Debug("hidden")
	l.Info("handled", zap.Int("client", 3))
	require.NoError(t, l.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "handled", entry["msg"])
	assert.Equal(t, "worker", entry["logger"])
	assert.Equal(t, float64(2), entry["rank"])
	assert.Equal(t, float64(3), entry["client"])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rexec.log")
	var console bytes.Buffer
	l := newLogger(Config{Level: "debug", Output: "file", FilePath: path, MaxSize: 1}, &console)

	l.Debug("to file")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Empty(t, console.String())
}
