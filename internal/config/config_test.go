package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/internal/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 64, cfg.BufferPoolCapacity)
	assert.Equal(t, storage.LRU, cfg.ReplacementPolicy)
	assert.True(t, cfg.Optimize)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reldb.toml")
	contents := `
[engine]
data_dir = "/var/reldb"
buffer_pool_capacity = 128
replacement_policy = "clock"
optimize = false

[output]
format = "json"
`
	require.NoError(t, writeFile(path, contents))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/reldb", cfg.DataDir)
	assert.Equal(t, 128, cfg.BufferPoolCapacity)
	assert.Equal(t, storage.CLOCK, cfg.ReplacementPolicy)
	assert.False(t, cfg.Optimize)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadPartialOverrideKeepsOtherDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reldb.toml")
	require.NoError(t, writeFile(path, `[engine]
data_dir = "/tmp/only-this"
`))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/only-this", cfg.DataDir)
	assert.Equal(t, 64, cfg.BufferPoolCapacity)
	assert.Equal(t, "table", cfg.OutputFormat)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
