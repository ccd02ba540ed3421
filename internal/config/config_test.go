package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	// 不存在配置文件时使用默认值
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN, "mario_data.db")
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 10, cfg.Leaderboard.Size)
	assert.Equal(t, 100, cfg.Leaderboard.MaxLimit)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Telegram.MaxInitDataAge)
	assert.Equal(t, "Марио", cfg.Telegram.DefaultHeroName)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoader_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: ":memory:"
telegram:
  token: "from-file"
  web_app_url: "https://mario.example.com/play"
leaderboard:
  size: 5
  max_limit: 50
log:
  level: debug
`)
	t.Setenv("MARIO_BOT_TELEGRAM_TOKEN", "from-env")

	loader := NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, path, loader.ConfigFile())
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, "https://mario.example.com/play", cfg.Telegram.WebAppURL)
	assert.Equal(t, 5, cfg.Leaderboard.Size)
	assert.Equal(t, 50, cfg.Leaderboard.MaxLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_MissingExplicitFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigLoad), "%v", err)
	assert.True(t, apperrors.IsCritical(err))
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{
		Database:    DatabaseConfig{DSN: ":memory:"},
		Leaderboard: LeaderboardConfig{Size: 10, MaxLimit: 3},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Leaderboard.MaxLimit)

	cfg.Leaderboard.Size = 0
	assert.True(t, apperrors.Is(cfg.Validate(), apperrors.ErrConfigValidate))

	cfg.Leaderboard.Size = 10
	cfg.Database.DSN = ""
	err := cfg.Validate()
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigMissing))
	assert.True(t, apperrors.IsCritical(err))
}

func TestLoadDotEnv(t *testing.T) {
	// 文件不存在时忽略
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MARIO_BOT_DOTENV_PROBE=hello\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("MARIO_BOT_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "hello", os.Getenv("MARIO_BOT_DOTENV_PROBE"))
}
