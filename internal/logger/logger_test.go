package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/mario-cloud-bot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInit_FileOutput(t *testing.T) {
	dir := t.TempDir()
	err := Init(&config.LogConfig{
		Level:  "debug",
		Format: "json",
		Output: "file",
		File: config.LogFileConfig{
			Path:       dir,
			Filename:   "test.log",
			MaxSize:    1,
			MaxAge:     1,
			MaxBackups: 1,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, Level())

	Info("存档写入", zap.Int64("user_id", 42))
	Error("存档写入失败", zap.Int64("user_id", 7))
	require.NoError(t, Sync())

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"user_id":42`)

	errData, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errData), `"user_id":7`)
	assert.NotContains(t, string(errData), `"user_id":42`)
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, Init(&config.LogConfig{Level: "info", Format: "console", Output: "stdout"}))
	assert.Equal(t, zapcore.InfoLevel, Level())

	SetLevel("warn")
	assert.Equal(t, zapcore.WarnLevel, Level())
	assert.False(t, GetLogger().Core().Enabled(zapcore.InfoLevel))

	SetLevel("unknown")
	assert.Equal(t, zapcore.InfoLevel, Level())
}

func TestWithModule(t *testing.T) {
	require.NoError(t, Init(&config.LogConfig{
		Level:   "info",
		Format:  "json",
		Output:  "stdout",
		Modules: map[string]string{"database": "error"},
	}))

	db := WithModule("database")
	assert.False(t, db.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, db.Core().Enabled(zapcore.ErrorLevel))

	// 未配置的模块使用主日志器
	assert.True(t, WithModule("bot").Core().Enabled(zapcore.InfoLevel))
}
