package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxypool_nexus/internal/shared/types"
)

func TestLoadIni(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poolmanager.ini")
	content := `[log]
level = debug

[pool]
target_size = 7
min_threshold = 2

[provider]
base_url = http://provider.local
country = de

[validator]
probe_url = http://probe.local/
probe_marker = hello

[cache]
enabled = true
ttl_seconds = 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := new(types.Config)
	require.NoError(t, LoadIni(cfg, path))

	assert.Equal(t, "debug", cfg.LogConf.Level)
	assert.Equal(t, 7, cfg.PoolConf.TargetSize)
	assert.Equal(t, 2, cfg.PoolConf.MinThreshold)
	assert.Equal(t, "http://provider.local", cfg.ProviderConf.BaseURL)
	assert.Equal(t, "de", cfg.ProviderConf.Country)
	assert.True(t, cfg.CacheConf.Enabled)
	assert.Equal(t, 120, cfg.CacheConf.TTLSec)

	// Unset fields are filled with defaults.
	assert.Equal(t, 5, cfg.PoolConf.MaxRefillAttempts)
	assert.Equal(t, 2, cfg.PoolConf.OverFetchMultiplier)
	assert.Equal(t, "http", cfg.ProviderConf.Protocol)
}

func TestLoadIniMissingFile(t *testing.T) {
	cfg := new(types.Config)
	assert.Error(t, LoadIni(cfg, filepath.Join(t.TempDir(), "nope.ini")))
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poolmanager.ini")
	require.NoError(t, os.WriteFile(path, []byte("[provider]\nbase_url = http://from-file\n"), 0644))

	t.Setenv("PROVIDER_BASE_URL", "http://from-env")
	cfg := new(types.Config)
	require.NoError(t, LoadIni(cfg, path))
	assert.Equal(t, "http://from-env", cfg.ProviderConf.BaseURL)
}

func TestApplyDefaultsDuration(t *testing.T) {
	cfg := new(types.Config)
	ApplyDefaults(cfg)
	assert.Equal(t, cfg.CheckInterval().Seconds(), float64(cfg.PoolConf.CheckIntervalSec))
	assert.Greater(t, cfg.CacheTTL().Seconds(), 0.0)
}
