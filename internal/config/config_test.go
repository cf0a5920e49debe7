package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "console", c.Log.Format)
	assert.Equal(t, "memory", c.Storage.Backend)
	assert.True(t, c.Storage.Migrate)
	assert.Equal(t, int32(8), c.Storage.MaxConns)
	assert.Equal(t, 180, c.Engine.LookbackDays)
	assert.Equal(t, 8, c.Engine.TopN)
	assert.Equal(t, 25.0, c.Engine.ThresholdPct)
	assert.Equal(t, 2, c.Engine.Hysteresis)
	assert.Equal(t, 5, c.Engine.ShortHorizon)
	assert.Equal(t, 10, c.Engine.LongHorizon)
	assert.Equal(t, 10, c.Engine.DrawdownWindow)
	assert.Equal(t, 45.0, c.Engine.HalfLifeDays)
	assert.Equal(t, 4, c.Batch.Concurrency)
	assert.Equal(t, 20.0, c.Batch.RateLimit)
	assert.Equal(t, 10*time.Minute, c.Batch.Timeout)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "15 */4 * * *", c.Server.Schedule)
	assert.True(t, c.Calendar.Enabled)
	assert.Equal(t, "xnys", c.Calendar.DefaultMIC)
	assert.NoError(t, c.Validate())
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SYMBOLS", "")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SYMBOLS", "")

	path := writeConfig(t, `
log:
  level: debug
  format: json
storage:
  backend: postgres
  postgres_dsn: postgres://u:p@localhost:5432/narratives
  migrate: false
engine:
  top_n: 5
  threshold_pct: 30
batch:
  concurrency: 2
  timeout: 90s
  symbols: [NVDA, AMD]
calendar:
  enabled: false
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
	assert.Equal(t, "postgres", c.Storage.Backend)
	assert.False(t, c.Storage.Migrate, "explicit false must survive defaults")
	assert.Equal(t, 5, c.Engine.TopN)
	assert.Equal(t, 30.0, c.Engine.ThresholdPct)
	assert.Equal(t, 2, c.Engine.Hysteresis, "unset keys keep defaults")
	assert.Equal(t, 2, c.Batch.Concurrency)
	assert.Equal(t, 90*time.Second, c.Batch.Timeout)
	assert.Equal(t, []string{"NVDA", "AMD"}, c.Batch.Symbols)
	assert.False(t, c.Calendar.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://env@localhost/db")
	t.Setenv("CLICKHOUSE_DSN", "clickhouse://localhost:9000/prices")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("SYMBOLS", "nvda, amd,,")

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", c.Storage.Backend)
	assert.Equal(t, "postgres://env@localhost/db", c.Storage.PostgresDSN)
	assert.Equal(t, "clickhouse://localhost:9000/prices", c.Storage.ClickhouseDSN)
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, []string{"NVDA", "AMD"}, c.Batch.Symbols)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SYMBOLS", "")

	tests := []struct {
		name string
		body string
	}{
		{"postgres without dsn", "storage:\n  backend: postgres\n"},
		{"unknown backend", "storage:\n  backend: sqlite\n"},
		{"threshold above 100", "engine:\n  threshold_pct: 120\n"},
		{"zero hysteresis", "engine:\n  hysteresis: -1\n"},
		{"long horizon not after short", "engine:\n  short_horizon: 10\n  long_horizon: 5\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseSymbols(t *testing.T) {
	assert.Equal(t, []string{"NVDA", "BHP.AX"}, ParseSymbols(" nvda ,bhp.ax"))
	assert.Nil(t, ParseSymbols(""))
}
