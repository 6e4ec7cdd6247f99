package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelError, levelFromString("ERROR"))
	require.Equal(t, slog.LevelWarn, levelFromString(" warning "))
	require.Equal(t, slog.LevelDebug, levelFromString("debug"))
	require.Equal(t, slog.LevelInfo, levelFromString("verbose"))
}

func TestNewWithWriterJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("crawl finished", "inserted", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "crawl finished", entry["msg"])
	require.EqualValues(t, 3, entry["inserted"])
}
