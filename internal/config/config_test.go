package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotbins/dotbins/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "json", cfg.State.Backend)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "--version", cfg.Verify.ProbeArg)
	assert.Contains(t, cfg.Root.ManifestPath, "manifest.json")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing root dir", func(c *config.Config) { c.Root.Dir = "" }},
		{"missing cache dir", func(c *config.Config) { c.Cache.Dir = "" }},
		{"zero timeout", func(c *config.Config) { c.HTTP.Timeout = 0 }},
		{"zero chunk size", func(c *config.Config) { c.HTTP.ChunkSize = 0 }},
		{"zero concurrency", func(c *config.Config) { c.Sync.MaxConcurrent = 0 }},
		{"bad backend", func(c *config.Config) { c.State.Backend = "etcd" }},
		{"bad log level", func(c *config.Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	content := `{
  "root": {"dir": "` + tmpDir + `/bins"},
  "http": {"timeout": "10s"},
  "sync": {"max_concurrent": 4},
  "log": {"level": "debug"}
}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "bins"), cfg.Root.Dir)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 4, cfg.Sync.MaxConcurrent)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Dependent paths follow the relocated root.
	assert.Equal(t, filepath.Join(tmpDir, "bins", "manifest.json"), cfg.Root.ManifestPath)
	assert.Equal(t, filepath.Join(tmpDir, "bins", "state"), cfg.State.Dir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DOTBINS_LOG_LEVEL", "warn")
	t.Setenv("DOTBINS_SYNC_MAX_CONCURRENT", "8")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Sync.MaxConcurrent)
}

func TestLoadInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"log": {"level": "noisy"}}`), 0o644))

	_, err := config.Load(configPath)
	assert.Error(t, err)
}

func TestBinDir(t *testing.T) {
	cfg := config.Default()
	cfg.Root.Dir = "/opt/dotbins"

	assert.Equal(t, filepath.Join("/opt/dotbins", "linux", "amd64", "bin"),
		cfg.BinDir("linux", "amd64"))
}
