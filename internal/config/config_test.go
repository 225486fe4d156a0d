package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Memory.PagingEnabled)
	assert.Equal(t, uint64(1024), cfg.Memory.PagingThreshold)
	assert.Equal(t, "127.0.0.1:37788", cfg.ListenAddr())
	assert.Zero(t, cfg.Memory.MaxValueBytes, "values are unbounded unless configured")
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Memory.PagingThreshold, cfg.Memory.PagingThreshold)
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	data := `
server:
  port: 40000
memory:
  paging_enabled: false
  paging_threshold: 4096
  sweep_interval: 10m
  search_tiers: [working, disk]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind, "unset keys keep defaults")
	assert.False(t, cfg.Memory.PagingEnabled)
	assert.Equal(t, uint64(4096), cfg.Memory.PagingThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Memory.SweepInterval)
	assert.Equal(t, []string{"working", "disk"}, cfg.Memory.SearchTiers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STRATA_DB", "/tmp/x.db")
	t.Setenv("STRATA_PAGING_THRESHOLD", "2048")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, uint64(2048), cfg.Memory.PagingThreshold)

	t.Setenv("STRATA_PAGING_THRESHOLD", "lots")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Memory.PagingThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Memory.DuplicateSimilarity = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
