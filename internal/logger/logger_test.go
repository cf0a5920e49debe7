package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	c := Component(l, "orchestrator")
	c.Info().Str("symbol", "NVDA").Msg("symbol processed")
	l.Debug().Msg("suppressed")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "NVDA", entry["symbol"])
	assert.Equal(t, "symbol processed", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(Config{Level: "DEBUG", Format: "console"}, &buf)
	require.NoError(t, err)

	l.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewWithWriter_Invalid(t *testing.T) {
	_, err := NewWithWriter(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = NewWithWriter(Config{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewWithWriter_JSONTimeFormat(t *testing.T) {
	prev := zerolog.TimeFieldFormat
	t.Cleanup(func() { zerolog.TimeFieldFormat = prev })

	var buf bytes.Buffer
	l, err := NewWithWriter(Config{Format: "json", TimeFormat: time.DateOnly}, &buf)
	require.NoError(t, err)
	l.Info().Msg("dated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	ts, ok := entry["time"].(string)
	require.True(t, ok)
	_, err = time.Parse(time.DateOnly, ts)
	assert.NoError(t, err, "time %q should use the configured layout", ts)
}
