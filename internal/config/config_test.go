package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.7, cfg.Resolve.Threshold, 0.001)
	assert.True(t, cfg.Normalize.Trim)
	assert.True(t, cfg.Normalize.CollapseSpaces)
	assert.True(t, cfg.Normalize.Uppercase)
	assert.False(t, cfg.Normalize.StripLeadingZeros)
	assert.Equal(t, "first", cfg.Join.Policy)
	assert.Equal(t, ",", cfg.CSV.Delimiter)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.SessionTTLMins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
resolve:
  threshold: 0.85
normalize:
  strip_leading_zeros: true
join:
  policy: sum
store:
  driver: none
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.85, cfg.Resolve.Threshold, 0.001)
	assert.True(t, cfg.Normalize.StripLeadingZeros)
	assert.Equal(t, "sum", cfg.Join.Policy)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadFromEnv(t *testing.T) {
	chTempDir(t)
	t.Setenv("CHASSIS_SERVER_PORT", "9191")
	t.Setenv("CHASSIS_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestDelimiterRune(t *testing.T) {
	assert.Equal(t, ',', CSVConfig{}.DelimiterRune())
	assert.Equal(t, ';', CSVConfig{Delimiter: ";"}.DelimiterRune())
	assert.Equal(t, '\t', CSVConfig{Delimiter: "\t"}.DelimiterRune())
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "verbose", Format: "json"})
	require.Error(t, err)
}
