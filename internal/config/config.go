// Package config loads application configuration from an optional TOML file
// and environment variables. Environment variables override file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the application configuration.
type Config struct {
	// ReposRoot is the directory under which repository storage is
	// namespaced per organisation.
	ReposRoot string `toml:"repos_root"`

	// DBPath is the SQLite database file.
	DBPath string `toml:"db_path"`

	// GitHubToken authenticates the mirror source probe. Optional; public
	// sources are probed unauthenticated.
	GitHubToken string `toml:"github_token"`

	// SyncPollInterval is the auto-sync scheduler cadence.
	SyncPollInterval time.Duration `toml:"-"`

	// SyncFailureCap disables auto-sync for mirrors with that many
	// consecutive failures. Zero disables the cap.
	SyncFailureCap int `toml:"sync_failure_cap"`

	// PollIntervalRaw is the file-format form of SyncPollInterval.
	PollIntervalRaw string `toml:"sync_poll_interval"`
}

func defaults() *Config {
	return &Config{
		ReposRoot:        "repos",
		DBPath:           "spienxhub.db",
		SyncPollInterval: time.Minute,
		SyncFailureCap:   3,
	}
}

// Load reads configuration. A TOML file named by SPIENXHUB_CONFIG is read
// first when set; individual SPIENXHUB_* environment variables override its
// values. Optional variables with defaults: SPIENXHUB_REPOS_ROOT (repos),
// SPIENXHUB_DB_PATH (spienxhub.db), SPIENXHUB_SYNC_POLL_INTERVAL (1m),
// SPIENXHUB_SYNC_FAILURE_CAP (3), SPIENXHUB_GITHUB_TOKEN (empty).
func Load() (*Config, error) {
	cfg := defaults()

	if path, ok := os.LookupEnv("SPIENXHUB_CONFIG"); ok && path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if cfg.PollIntervalRaw != "" {
			parsed, err := time.ParseDuration(cfg.PollIntervalRaw)
			if err != nil {
				return nil, fmt.Errorf("config file sync_poll_interval %q: %w", cfg.PollIntervalRaw, err)
			}
			cfg.SyncPollInterval = parsed
		}
	}

	if v, ok := os.LookupEnv("SPIENXHUB_REPOS_ROOT"); ok {
		cfg.ReposRoot = v
	}
	if v, ok := os.LookupEnv("SPIENXHUB_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("SPIENXHUB_GITHUB_TOKEN"); ok {
		cfg.GitHubToken = v
	}
	if v, ok := os.LookupEnv("SPIENXHUB_SYNC_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SPIENXHUB_SYNC_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		cfg.SyncPollInterval = parsed
	}
	if v, ok := os.LookupEnv("SPIENXHUB_SYNC_FAILURE_CAP"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("SPIENXHUB_SYNC_FAILURE_CAP has invalid value %q", v)
		}
		cfg.SyncFailureCap = parsed
	}

	return cfg, nil
}
