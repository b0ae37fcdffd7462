package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "repos", cfg.ReposRoot)
	assert.Equal(t, "spienxhub.db", cfg.DBPath)
	assert.Equal(t, time.Minute, cfg.SyncPollInterval)
	assert.Equal(t, 3, cfg.SyncFailureCap)
	assert.Empty(t, cfg.GitHubToken)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SPIENXHUB_REPOS_ROOT", "/var/lib/spienxhub/repos")
	t.Setenv("SPIENXHUB_DB_PATH", "/var/lib/spienxhub/state.db")
	t.Setenv("SPIENXHUB_SYNC_POLL_INTERVAL", "30s")
	t.Setenv("SPIENXHUB_SYNC_FAILURE_CAP", "5")
	t.Setenv("SPIENXHUB_GITHUB_TOKEN", "ghp_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/spienxhub/repos", cfg.ReposRoot)
	assert.Equal(t, "/var/lib/spienxhub/state.db", cfg.DBPath)
	assert.Equal(t, 30*time.Second, cfg.SyncPollInterval)
	assert.Equal(t, 5, cfg.SyncFailureCap)
	assert.Equal(t, "ghp_test", cfg.GitHubToken)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spienxhub.toml")
	content := `
repos_root = "/srv/repos"
db_path = "/srv/state.db"
sync_poll_interval = "5m"
sync_failure_cap = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("SPIENXHUB_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/repos", cfg.ReposRoot)
	assert.Equal(t, "/srv/state.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.SyncPollInterval)
	assert.Equal(t, 10, cfg.SyncFailureCap)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spienxhub.toml")
	require.NoError(t, os.WriteFile(path, []byte(`repos_root = "/from/file"`), 0o644))
	t.Setenv("SPIENXHUB_CONFIG", path)
	t.Setenv("SPIENXHUB_REPOS_ROOT", "/from/env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.ReposRoot)
}

func TestLoad_InvalidInterval(t *testing.T) {
	t.Setenv("SPIENXHUB_SYNC_POLL_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidFailureCap(t *testing.T) {
	t.Setenv("SPIENXHUB_SYNC_FAILURE_CAP", "-1")

	_, err := Load()
	assert.Error(t, err)
}
