package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/mario-cloud-bot/internal/api"
	"github.com/wfunc/mario-cloud-bot/internal/bot"
	"github.com/wfunc/mario-cloud-bot/internal/config"
	"github.com/wfunc/mario-cloud-bot/internal/database"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/logger"
	"github.com/wfunc/mario-cloud-bot/internal/service"
	"github.com/wfunc/mario-cloud-bot/internal/webapp"
	"github.com/wfunc/mario-cloud-bot/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	loader *config.Loader
	logger *zap.Logger

	db         *gorm.DB
	services   *service.Services
	dispatcher *webapp.Dispatcher
	hub        *websocket.Hub
	bot        *bot.Bot
	httpServer *http.Server

	// 关闭控制
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		envFile     = flag.String("env", ".env", ".env 文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	// 显示版本信息
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// 显示帮助信息
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// .env 要在viper读取环境变量之前加载
	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Printf("加载 .env 失败: %v\n", err)
		os.Exit(1)
	}

	// 加载配置
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	// 创建服务器实例
	server := NewServer(cfg, loader)

	// 启动服务器
	if err := server.Start(); err != nil {
		logger.Error("服务器启动失败", zap.Error(err), zap.Bool("critical", apperrors.IsCritical(err)))
		server.Shutdown()
		logger.Cleanup()
		os.Exit(1)
	}

	// 等待退出信号
	server.WaitForShutdown()

	// 优雅关闭
	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		logger.Cleanup()
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config, loader *config.Loader) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:    cfg,
		loader: loader,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动马里奥云存档机器人...",
		zap.String("version", Version),
		zap.String("config_file", s.loader.ConfigFile()),
	)

	if err := s.initDatabase(); err != nil {
		return err
	}

	s.services = service.NewServices(s.db, logger.WithModule("service"))
	s.dispatcher = webapp.NewDispatcher(s.services.Save, s.services.Leaderboard, &s.cfg.Leaderboard, logger.WithModule("webapp"))

	if err := s.startBot(); err != nil {
		return err
	}
	s.startHTTPServer()

	// 监听配置变化，只有日志级别可以热更新
	if s.loader.ConfigFile() != "" {
		s.loader.Watch(s.reloadConfig, func(err error) {
			s.logger.Warn("配置重载失败", zap.Error(err))
		})
	}

	s.logger.Info("服务器启动成功")
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...", zap.String("driver", s.cfg.Database.Driver))

	db, err := database.Open(&s.cfg.Database, logger.WithModule("database"))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	s.db = db

	// 自动迁移数据库
	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, s.cfg.Database.DSN, logger.WithModule("database")); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseMigrate, "数据库迁移失败")
		}
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// startBot 启动Telegram长轮询，没有token时跳过
func (s *Server) startBot() error {
	if s.cfg.Telegram.Token == "" {
		s.logger.Warn("未配置 telegram.token，Telegram机器人不会启动")
		return nil
	}

	b, err := bot.New(s.cfg, s.services, s.dispatcher, logger.WithModule("bot"))
	if err != nil {
		return err
	}
	s.bot = b

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := b.Run(s.ctx); err != nil {
			s.logger.Error("Telegram机器人异常退出", zap.Error(err))
		}
	}()
	return nil
}

// startHTTPServer 启动HTTP和WebSocket服务
func (s *Server) startHTTPServer() {
	if !s.cfg.Server.Enabled {
		s.logger.Info("HTTP服务未启用")
		return
	}

	gin.SetMode(s.cfg.Server.Mode)

	var wsHandler *websocket.Handler
	if s.cfg.Telegram.Token != "" {
		s.hub = websocket.NewHub(s.dispatcher, logger.WithModule("websocket"))
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.hub.Run(s.ctx)
		}()
		wsHandler = websocket.NewHandler(s.ctx, s.hub, logger.WithModule("websocket"))
	} else {
		s.logger.Warn("未配置 telegram.token，无法校验WebApp初始化数据，WebSocket接口不会注册")
	}

	router := api.NewRouter(s.db, s.cfg, s.services, wsHandler, logger.WithModule("http"))
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP服务已启动", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
		}
	}()
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
	)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case <-s.ctx.Done():
	}
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
		}
	}

	// 取消主上下文，长轮询和WebSocket随之退出
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return apperrors.New(apperrors.ErrTimeout, "关闭超时")
	}

	if err := database.Close(s.db); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
	return nil
}

// reloadConfig 配置文件变化后更新日志级别
func (s *Server) reloadConfig(newCfg *config.Config) {
	logger.SetLevel(newCfg.Log.Level)
	s.logger.Info("配置重新加载完成", zap.String("log_level", newCfg.Log.Level))
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("马里奥云存档机器人\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("马里奥云存档机器人")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  mario-cloud-bot [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  MARIO_BOT_TELEGRAM_TOKEN        机器人token")
	fmt.Println("  MARIO_BOT_TELEGRAM_WEB_APP_URL  游戏页面地址")
	fmt.Println("  MARIO_BOT_DATABASE_DSN          数据库连接串")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  mario-cloud-bot -config=/path/to/config.yaml")
	fmt.Println("  mario-cloud-bot -version")
}
