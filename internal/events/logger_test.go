package events_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotbins/dotbins/internal/events"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.WarnLevel, "text", &buf)

	logger.Debug("not shown")
	logger.Info("not shown either")
	logger.Warn("warning")
	logger.Error("failure")

	out := buf.String()
	assert.NotContains(t, out, "not shown")
	assert.Contains(t, out, "[WARN] warning")
	assert.Contains(t, out, "[ERROR] failure")
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	logger.WithFields(map[string]interface{}{
		"tool":  "fzf",
		"bytes": 42,
	}).Info("downloaded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "downloaded", entry["msg"])
	assert.Equal(t, "fzf", entry["tool"])
	assert.Equal(t, float64(42), entry["bytes"])
}

func TestLoggerFieldIsolation(t *testing.T) {
	var buf bytes.Buffer
	base := events.NewTestLogger(events.DebugLevel, "json", &buf)

	derived := base.WithField("component", "downloader")
	base.Info("base entry")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, ok := entry["component"]
	assert.False(t, ok, "derived field leaked into base logger")

	buf.Reset()
	derived.WithError(assert.AnError).Warn("derived entry")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "downloader", entry["component"])
	assert.NotEmpty(t, entry["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, events.DebugLevel, events.ParseLevel("debug"))
	assert.Equal(t, events.WarnLevel, events.ParseLevel("WARN"))
	assert.Equal(t, events.InfoLevel, events.ParseLevel("unknown"))
}
