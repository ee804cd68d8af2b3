package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	l, err := NewLogger(context.Background(), LoggerConfig{
		ServiceName:   "pageinspect",
		IsDebug:       true,
		InitialFields: []zap.Field{zap.Int("target_pid", 42)},
		Output:        &out,
	})
	require.NoError(t, err)

	l.Debug("resolved region", zap.Uint64("pages", 3))
	require.NoError(t, l.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))

	assert.Equal(t, "resolved region", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "pageinspect", line["service"])
	assert.InDelta(t, 42, line["target_pid"], 0)
	assert.InDelta(t, 3, line["pages"], 0)
	assert.Contains(t, line, "timestamp")
	assert.Contains(t, line, "caller")
}

func TestNewLogger_WarnByDefault(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	l, err := NewLogger(context.Background(), LoggerConfig{ServiceName: "pageinspect", Output: &out})
	require.NoError(t, err)

	l.Debug("resolved region")
	l.Info("opened process snapshot")
	assert.Empty(t, out.String())

	l.Warn("failed to get host swap usage")
	require.NoError(t, l.Sync())
	assert.Contains(t, out.String(), `"level":"warn"`)
	assert.NotContains(t, out.String(), "caller")
}
