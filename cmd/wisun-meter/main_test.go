package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wisun-meter.toml")
	data := []byte("device = \"/dev/ttyS1\"\nbaud = 9600\ninterval_seconds = 30\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS1", cfg.Device)
	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, 30, cfg.IntervalSeconds)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Device)
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, 10, cfg.IntervalSeconds)
}

func TestLoadConfigInvalidInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wisun-meter.toml")
	require.NoError(t, os.WriteFile(path, []byte("interval_seconds = -5\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.IntervalSeconds)
}
