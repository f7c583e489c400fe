package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/copyleftdev/xsession/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))

	logger.Info("run finished", zap.String("action", "tweet"))
	logger.Debug("suppressed")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "run finished", entry["msg"])
	assert.Equal(t, "tweet", entry["action"])
	assert.Equal(t, "xsession", entry["logger"])
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: "chatty", Format: "console"}, zapcore.AddSync(&buf))

	logger.Debug("hidden")
	logger.Info("visible")
	_ = logger.Sync()

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewLogger_FileCore(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "xsession.log")
	logger := NewLogger(config.LogConfig{
		Level:      "debug",
		Format:     "console",
		File:       path,
		MaxSize:    1,
		MaxBackups: 1,
	}, zapcore.AddSync(&console))

	logger.Debug("written to both")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to both"`)
	assert.Contains(t, console.String(), "written to both")
}

func TestSync_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() { Sync(nil) })
}
