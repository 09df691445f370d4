package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNSDefaults(t *testing.T) {
	cfg, err := LoadNS("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.False(t, cfg.Exec.Enabled)
}

func TestLoadNSFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
logging:
  level: DEBUG
  format: json
`), 0644))

	cfg, err := LoadNS(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	// Untouched fields keep their defaults.
	assert.Equal(t, 50, cfg.Server.SearchCacheSize)
}

func TestLoadNSRejectsInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: LOUD\n"), 0644))

	_, err := LoadNS(path)
	assert.Error(t, err)
}

func TestLoadSSDefaults(t *testing.T) {
	cfg, err := LoadSS("")
	require.NoError(t, err)
	assert.Equal(t, "disk", cfg.Store.Backend)
	assert.NotEmpty(t, cfg.Server.StorageRoot)
	assert.NotEmpty(t, cfg.Server.BackupRoot)
}

func TestLoadSSRejectsInvalidBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ss.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: postgres\n"), 0644))

	_, err := LoadSS(path)
	assert.Error(t, err)
}

func TestWatchFileMissingPathErrors(t *testing.T) {
	_, err := WatchFile(filepath.Join(t.TempDir(), "missing.yaml"), func() {})
	assert.Error(t, err)
}

func TestWatchFileEmptyPathIsNoop(t *testing.T) {
	w, err := WatchFile("", func() {})
	assert.NoError(t, err)
	assert.Nil(t, w)
}
