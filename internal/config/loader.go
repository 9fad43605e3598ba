package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from an optional JSON file and the
// environment, layered over defaults. Environment variables use the
// DOTBINS_ prefix with underscores for nesting, e.g. DOTBINS_LOG_LEVEL.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	defaults := Default()
	setDefaults(v, defaults)

	v.SetEnvPrefix("DOTBINS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		for _, dir := range defaultConfigDirs(defaults) {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			// Missing config is fine; defaults and env apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Manifest path follows a relocated root unless set explicitly.
	if cfg.Root.Dir != defaults.Root.Dir && cfg.Root.ManifestPath == defaults.Root.ManifestPath {
		cfg.Root.ManifestPath = filepath.Join(cfg.Root.Dir, "manifest.json")
	}
	if cfg.Root.Dir != defaults.Root.Dir && cfg.State.Dir == defaults.State.Dir {
		cfg.State.Dir = filepath.Join(cfg.Root.Dir, "state")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("root.dir", cfg.Root.Dir)
	v.SetDefault("root.manifest_path", cfg.Root.ManifestPath)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("http.timeout", cfg.HTTP.Timeout)
	v.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	v.SetDefault("http.chunk_size", cfg.HTTP.ChunkSize)
	v.SetDefault("sync.max_concurrent", cfg.Sync.MaxConcurrent)
	v.SetDefault("state.backend", cfg.State.Backend)
	v.SetDefault("state.dir", cfg.State.Dir)
	v.SetDefault("verify.probe_arg", cfg.Verify.ProbeArg)
	v.SetDefault("verify.probe_timeout", cfg.Verify.ProbeTimeout)
	v.SetDefault("advisory.base_url", cfg.Advisory.BaseURL)
	v.SetDefault("advisory.ecosystem", cfg.Advisory.Ecosystem)
	v.SetDefault("advisory.timeout", cfg.Advisory.Timeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

func defaultConfigDirs(cfg *Config) []string {
	return []string{
		".",
		cfg.Root.Dir,
	}
}
