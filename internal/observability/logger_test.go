package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/copyleftdev/scryshot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitialize_JSONToWriter(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	logger := Initialize(config.LogConfig{Level: "debug", Format: "json"}, zapcore.AddSync(&buf))
	logger.Info("capture written", zap.String("path", "verification/main_ui.png"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "capture written", entry["msg"])
	assert.Equal(t, "scryshot", entry["logger"])
	assert.Equal(t, "verification/main_ui.png", entry["path"])
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bytes.Buffer
	Initialize(config.LogConfig{Level: "info", Format: "json"}, zapcore.AddSync(&first))
	Initialize(config.LogConfig{Level: "info", Format: "json"}, zapcore.AddSync(&second))

	GetLogger().Info("hello")
	assert.NotEmpty(t, first.String())
	assert.Empty(t, second.String())
}

func TestInitialize_LevelFilter(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	logger := Initialize(config.LogConfig{Level: "warn", Format: "console"}, zapcore.AddSync(&buf))
	logger.Info("dropped")
	assert.Empty(t, buf.String())
	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestInitialize_FileOutput(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	path := filepath.Join(t.TempDir(), "scryshot.log")
	var console bytes.Buffer
	logger := Initialize(config.LogConfig{Level: "info", Format: "console", File: path, MaxSize: 1}, zapcore.AddSync(&console))
	logger.Info("to file")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
}
