package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 20, cfg.Pipeline.Analysis.BatchSize)
	assert.Equal(t, 85, cfg.Pipeline.Dedup.Threshold)
	assert.Equal(t, 24*time.Hour, cfg.Pipeline.Dedup.Window)
	assert.Equal(t, 75, cfg.Pipeline.Clustering.Threshold)
	assert.Equal(t, 1.5, cfg.Pipeline.Ranking.Gravity)
	assert.Equal(t, 10*time.Second, cfg.Market.Timeout)
	assert.Len(t, cfg.Pipeline.Truth.Tier1Sources, 4)
}

func TestLoadOverridesFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "9000"
pipeline:
  analysis:
    batch_size: 5
  clustering:
    threshold: 80
    window: 3h
    policy: best
  trend:
    min_coin_mentions: 5
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("DB_PATH", "/tmp/other.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.GetServerAddress())
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, 80, cfg.Pipeline.Clustering.Threshold)
	assert.Equal(t, 3*time.Hour, cfg.Pipeline.Clustering.Window)
	assert.Equal(t, ClusterPolicyBest, cfg.Pipeline.Clustering.Policy)
	assert.Equal(t, 5, cfg.Pipeline.Trend.MinCoinMentions)
	assert.Equal(t, 5, cfg.Pipeline.Analysis.BatchSize)
	// 未覆盖的字段保留默认值
	assert.Equal(t, 2, cfg.Pipeline.Trend.MinTagMentions)
	assert.Equal(t, 85, cfg.Pipeline.Dedup.Threshold)
}

func TestGetServerAddressKeepsHostPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = "127.0.0.1:8080"
	assert.Equal(t, "127.0.0.1:8080", cfg.GetServerAddress())
}
