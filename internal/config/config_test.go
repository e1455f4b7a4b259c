package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/weather"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "delaycast.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.5, cfg.Prior.Alpha, 0.001)
	assert.InDelta(t, 0.5, cfg.Prior.Beta, 0.001)
	assert.Equal(t, "multiplicative", cfg.Weather.Strategy)
	assert.InDelta(t, 1.3, cfg.Weather.TempMult, 0.001)
	assert.InDelta(t, 1.4, cfg.Weather.WindMult, 0.001)
	assert.InDelta(t, 0.30, cfg.Weather.PrecipAdd, 0.001)
	assert.InDelta(t, 25, cfg.Curve.MeanLateDelay, 0.001)
	assert.Equal(t, 2015, cfg.Validation.EarliestYear)
	assert.Equal(t, 15, cfg.Validation.ThresholdMin)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/delaycast
log:
  level: debug
  format: console
server:
  port: 9090
weather:
  strategy: additive
validation:
  earliest_year: 2018
  timeout_secs: 600
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/delaycast", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "additive", cfg.Weather.Strategy)
	assert.Equal(t, 2018, cfg.Validation.EarliestYear)
	assert.Equal(t, 10*time.Minute, cfg.ValidationTimeout())
	// Defaults still apply for unset values
	assert.InDelta(t, 1.3, cfg.Weather.TempMult, 0.001)
	assert.Equal(t, 15, cfg.Validation.ThresholdMin)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DELAYCAST_STORE_DRIVER", "postgres")
	t.Setenv("DELAYCAST_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestStoreSettings(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: "postgres", DatabaseURL: "postgres://x", MaxConns: 20}}

	sc := cfg.StoreSettings()
	assert.Equal(t, "postgres", sc.Driver)
	assert.Equal(t, "postgres://x", sc.Postgres)
	require.NotNil(t, sc.Pool)
	assert.Equal(t, int32(20), sc.Pool.MaxConns)

	sc = (&Config{Store: StoreConfig{Driver: "sqlite", Path: "a.db"}}).StoreSettings()
	assert.Nil(t, sc.Pool)
	assert.Equal(t, "a.db", sc.Path)
}

func TestAdjusterStrategySelection(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, weather.StrategyMultiplicative, cfg.Adjuster().Strategy())

	cfg.Weather.Strategy = "additive"
	assert.Equal(t, weather.StrategyAdditive, cfg.Adjuster().Strategy())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "json"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "console"}))

	err := InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
