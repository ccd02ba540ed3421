package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/middleware"
	"go.uber.org/zap"
)

// Handler WebSocket升级处理器
type Handler struct {
	hub      *Hub
	ctx      context.Context
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler 创建处理器。ctx 只提供取值，取消它不会中断已收到的消息
func NewHandler(ctx context.Context, hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{
		hub: hub,
		ctx: context.WithoutCancel(ctx),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// WebApp页面托管在其他域名上
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// ServeWebApp 升级连接，必须挂在 RequireWebAppUser 之后
func (h *Handler) ServeWebApp(c *gin.Context) {
	invoker, ok := middleware.GetInvoker(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    "NO_INIT_DATA",
			"message": "缺少WebApp初始化数据",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.Int64("user_id", invoker.ID),
			zap.Error(apperrors.Wrap(err, apperrors.ErrWebSocketConnect)))
		return
	}

	client := NewClient(h.hub, conn, invoker)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump(h.ctx)

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.Int64("user_id", invoker.ID),
		zap.String("ip", c.ClientIP()))
}
