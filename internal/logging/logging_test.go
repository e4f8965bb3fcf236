package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSONWithErrorKind(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Warn("reserve failed", Err(domain.ErrSpotLocked))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reserve failed", entry["msg"])

	errGroup, ok := entry["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SPOT_LOCKED", errGroup["kind"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(config.LogConfig{Format: "text"}, &buf).Info("hello", "spot_id", 7)

	assert.Contains(t, buf.String(), "spot_id=7")
}
