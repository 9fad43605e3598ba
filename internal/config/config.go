package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Install root and manifest location
	Root RootConfig `json:"root" mapstructure:"root"`

	// Downloaded archive cache
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// HTTP behavior
	HTTP HTTPConfig `json:"http" mapstructure:"http"`

	// Sync behavior
	Sync SyncConfig `json:"sync" mapstructure:"sync"`

	// Installed state persistence
	State StateConfig `json:"state" mapstructure:"state"`

	// Post-install verification
	Verify VerifyConfig `json:"verify" mapstructure:"verify"`

	// Advisory lookups
	Advisory AdvisoryConfig `json:"advisory" mapstructure:"advisory"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// RootConfig locates the install tree and manifest.
type RootConfig struct {
	Dir          string `json:"dir" mapstructure:"dir"`                     // Base directory for installed binaries
	ManifestPath string `json:"manifest_path" mapstructure:"manifest_path"` // Manifest file (default <dir>/manifest.json)
}

// CacheConfig locates the archive cache.
type CacheConfig struct {
	Dir string `json:"dir" mapstructure:"dir"`
}

// HTTPConfig for artifact downloads.
type HTTPConfig struct {
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	UserAgent string        `json:"user_agent" mapstructure:"user_agent"`
	ChunkSize int           `json:"chunk_size" mapstructure:"chunk_size"`
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	MaxConcurrent int `json:"max_concurrent" mapstructure:"max_concurrent"` // Parallel key syncs in sync-all
}

// StateConfig for installed-state persistence.
type StateConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // json or sqlite
	Dir     string `json:"dir" mapstructure:"dir"`         // State, pin and backup files
}

// VerifyConfig for the post-install probe.
type VerifyConfig struct {
	ProbeArg     string        `json:"probe_arg" mapstructure:"probe_arg"`
	ProbeTimeout time.Duration `json:"probe_timeout" mapstructure:"probe_timeout"`
}

// AdvisoryConfig for the CVE enrichment API.
type AdvisoryConfig struct {
	BaseURL   string        `json:"base_url" mapstructure:"base_url"`
	Ecosystem string        `json:"ecosystem" mapstructure:"ecosystem"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
}

// Default returns config with sensible defaults.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	rootDir := filepath.Join(home, ".dotbins")

	return &Config{
		Root: RootConfig{
			Dir:          rootDir,
			ManifestPath: filepath.Join(rootDir, "manifest.json"),
		},
		Cache: CacheConfig{
			Dir: filepath.Join(home, ".cache", "dotbins"),
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "dotbins/1.0",
			ChunkSize: 8192,
		},
		Sync: SyncConfig{
			MaxConcurrent: 1,
		},
		State: StateConfig{
			Backend: "json",
			Dir:     filepath.Join(rootDir, "state"),
		},
		Verify: VerifyConfig{
			ProbeArg:     "--version",
			ProbeTimeout: 5 * time.Second,
		},
		Advisory: AdvisoryConfig{
			BaseURL:   "https://api.github.com/advisories",
			Ecosystem: "go",
			Timeout:   10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Root.Dir == "" {
		return errors.New("root.dir is required")
	}

	if c.Root.ManifestPath == "" {
		return errors.New("root.manifest_path is required")
	}

	if c.Cache.Dir == "" {
		return errors.New("cache.dir is required")
	}

	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be positive")
	}

	if c.HTTP.ChunkSize <= 0 {
		return errors.New("http.chunk_size must be positive")
	}

	if c.Sync.MaxConcurrent <= 0 {
		return errors.New("sync.max_concurrent must be positive")
	}

	if c.State.Backend != "json" && c.State.Backend != "sqlite" {
		return fmt.Errorf("invalid state backend: %s", c.State.Backend)
	}

	if c.Verify.ProbeTimeout <= 0 {
		return errors.New("verify.probe_timeout must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Root.Dir,
		c.Cache.Dir,
		c.State.Dir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// BinDir returns the install directory for a platform/arch pair.
func (c *Config) BinDir(platform, arch string) string {
	return filepath.Join(c.Root.Dir, platform, arch, "bin")
}
