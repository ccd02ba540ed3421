package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/mario-cloud-bot/internal/config"
	"github.com/wfunc/mario-cloud-bot/internal/middleware"
	"github.com/wfunc/mario-cloud-bot/internal/service"
	"github.com/wfunc/mario-cloud-bot/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine             *gin.Engine
	db                 *gorm.DB
	cfg                *config.Config
	leaderboardHandler *LeaderboardHandler
	wsHandler          *websocket.Handler
	telegramAuth       *middleware.TelegramAuth
	log                *zap.Logger
}

// NewRouter 创建路由器，wsHandler为nil时不注册WebSocket路由
func NewRouter(db *gorm.DB, cfg *config.Config, services *service.Services, wsHandler *websocket.Handler, log *zap.Logger) *Router {
	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	router := &Router{
		engine:             engine,
		db:                 db,
		cfg:                cfg,
		leaderboardHandler: NewLeaderboardHandler(services.Leaderboard, &cfg.Leaderboard),
		wsHandler:          wsHandler,
		telegramAuth:       middleware.NewTelegramAuth(cfg.Telegram.Token, cfg.Telegram.MaxInitDataAge),
		log:                log,
	}

	// 设置路由
	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/leaderboard", r.leaderboardHandler.Top)
	}

	// WebSocket路由，初始化数据校验失败时在升级前返回401
	if r.wsHandler != nil {
		ws := r.engine.Group("/ws")
		ws.Use(r.telegramAuth.RequireWebAppUser())
		{
			ws.GET("/webapp", r.wsHandler.ServeWebApp)
		}
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		r.log.Warn("健康检查失败", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Handler 返回http.Handler，供http.Server使用
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
