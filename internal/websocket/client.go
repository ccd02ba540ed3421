package websocket

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/logger"
	"github.com/wfunc/mario-cloud-bot/internal/webapp"
	"go.uber.org/zap"
)

// 错误定义
var (
	ErrUserNotConnected = errors.New("用户未连接")
	ErrSendBufferFull   = errors.New("发送缓冲区已满")
)

// WebSocket配置
const (
	// 写超时
	writeWait = 10 * time.Second

	// 读取pong超时
	pongWait = 60 * time.Second

	// ping发送周期（必须小于pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小，存档文档通常只有几KB
	maxMessageSize = 512 * 1024
)

// Client WebSocket客户端
type Client struct {
	ID      string          // 客户端ID
	Invoker webapp.Invoker  // 初始化数据中的用户
	Hub     *Hub            // Hub引用
	Conn    *websocket.Conn // WebSocket连接
	Send    chan []byte     // 发送通道

	closeOnce sync.Once
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, invoker webapp.Invoker) *Client {
	return &Client{
		ID:      uuid.New().String(),
		Invoker: invoker,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 64),
	}
}

// ReadPump 读取消息并交给分发器，每个连接独立运行
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			return
		}

		c.handleMessage(ctx, message)
	}
}

// WritePump 写入消息，每条回复单独一帧
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Warn("WebSocket写入失败",
					zap.String("client_id", c.ID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理一条客户端消息，panic只影响这一条
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	if !c.Hub.acquire() {
		return
	}
	defer c.Hub.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r, debug.Stack())
		}
	}()

	result := c.Hub.handler.Dispatch(ctx, c.Invoker, data)
	frame, err := result.Encode()
	if err != nil {
		c.Hub.logger.Error("序列化回复失败",
			zap.String("client_id", c.ID),
			zap.String("request_id", result.RequestID),
			zap.Error(err))
		return
	}
	if frame == nil {
		return
	}

	if err := c.enqueue(frame); err != nil {
		c.Hub.logger.Warn("回复未发送",
			zap.String("client_id", c.ID),
			zap.String("request_id", result.RequestID),
			zap.Error(apperrors.Wrap(err, apperrors.ErrWebSocketSend)))
	}
}

// enqueue 放入发送队列，通道已被Hub关闭时返回错误
func (c *Client) enqueue(frame []byte) (err error) {
	c.Hub.clientsMu.RLock()
	defer c.Hub.clientsMu.RUnlock()

	if _, ok := c.Hub.clients[c.ID]; !ok {
		return ErrUserNotConnected
	}
	select {
	case c.Send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.Conn.Close()
	})
}
