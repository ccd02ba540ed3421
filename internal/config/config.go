package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
)

// EnvPrefix 环境变量前缀，例如 MARIO_BOT_TELEGRAM_TOKEN
const EnvPrefix = "MARIO_BOT"

// Config 全局配置结构体，启动时构造一次并显式传给各组件
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig HTTP/WebSocket服务配置
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr 监听地址
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// TelegramConfig 机器人配置
type TelegramConfig struct {
	Token           string        `mapstructure:"token"`
	WebAppURL       string        `mapstructure:"web_app_url"`
	PollTimeout     int           `mapstructure:"poll_timeout"` // 秒
	Debug           bool          `mapstructure:"debug"`
	MaxInitDataAge  time.Duration `mapstructure:"max_init_data_age"`
	DefaultHeroName string        `mapstructure:"default_hero_name"`
}

// LeaderboardConfig 排行榜配置
type LeaderboardConfig struct {
	Size     int `mapstructure:"size"`
	MaxLimit int `mapstructure:"max_limit"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Loader 配置加载器
type Loader struct {
	v  *viper.Viper
	mu sync.Mutex
}

// NewLoader 创建配置加载器，configPath为空时在 ./config 和当前目录查找 config.yaml
func NewLoader(configPath string) *Loader {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return &Loader{v: v}
}

// LoadDotEnv 读取 .env 文件到进程环境变量，文件不存在时忽略
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("读取 %s 失败: %w", f, err)
		}
	}
	return nil
}

// Load 读取并解析配置
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.Wrap(err, apperrors.ErrConfigLoad, "读取配置文件失败")
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigParse, "解析配置失败")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile 实际使用的配置文件路径
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch 监听配置文件变化，解析成功后回调新配置
func (l *Loader) Watch(callback func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		l.mu.Lock()
		newCfg := &Config{}
		var err error
		if uerr := l.v.Unmarshal(newCfg); uerr != nil {
			err = apperrors.Wrap(uerr, apperrors.ErrConfigParse)
		} else {
			err = newCfg.Validate()
		}
		l.mu.Unlock()

		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("配置重载失败: %w", err))
			}
			return
		}
		if callback != nil {
			callback(newCfg)
		}
	})
	l.v.WatchConfig()
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return apperrors.New(apperrors.ErrConfigMissing, "database.dsn")
	}
	if c.Leaderboard.Size <= 0 {
		return apperrors.Newf(apperrors.ErrConfigValidate, "leaderboard.size 必须大于0: %d", c.Leaderboard.Size)
	}
	if c.Leaderboard.MaxLimit < c.Leaderboard.Size {
		c.Leaderboard.MaxLimit = c.Leaderboard.Size
	}
	return nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/mario_data.db?_busy_timeout=5000&_journal_mode=WAL")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.web_app_url", "")
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.max_init_data_age", "24h")
	v.SetDefault("telegram.default_hero_name", "Марио")

	v.SetDefault("leaderboard.size", 10)
	v.SetDefault("leaderboard.max_limit", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "mario-bot.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)
}
