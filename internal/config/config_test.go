package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 20.0, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 40, cfg.Server.RateBurst)
	assert.Equal(t, 10, cfg.Analysis.CountTimeoutSecs)
	assert.Equal(t, 15, cfg.Analysis.FetchTimeoutSecs)
	assert.Equal(t, 45, cfg.Analysis.ProcessTimeoutSecs)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: insight.db
server:
  port: 9090
analysis:
  process_timeout_secs: 60
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "insight.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Analysis.ProcessTimeoutSecs)
	// Unset keys keep their defaults.
	assert.Equal(t, 10, cfg.Analysis.CountTimeoutSecs)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
