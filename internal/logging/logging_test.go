package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dyluth/downlink/internal/config"
)

func TestNewWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downlink.log")
	cfg := &config.LoggingConfig{File: path}
	require.NoError(t, cfg.Validate())

	logger, closer, err := New(cfg)
	require.NoError(t, err)

	logger.Info("frame processed", zap.String("stage", "pn.main"))
	logger.Debug("suppressed at info level")
	require.NoError(t, logger.Sync())
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "frame processed", entry["msg"])
	assert.Equal(t, "pn.main", entry["stage"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(&config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWriterConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "console", zapcore.DebugLevel)

	logger.Debug("hello", zap.Int("frames", 3))
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), `"frames": 3`)
}
