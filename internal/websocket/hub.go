package websocket

import (
	"context"
	"sync"

	"github.com/wfunc/mario-cloud-bot/internal/webapp"
	"go.uber.org/zap"
)

// MessageHandler 处理客户端发来的WebApp消息
type MessageHandler interface {
	Dispatch(ctx context.Context, invoker webapp.Invoker, raw []byte) webapp.Result
}

// Hub WebSocket连接管理中心
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 用户ID到客户端的映射
	userClients map[int64][]*Client
	userMu      sync.RWMutex

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client

	handler MessageHandler
	done    chan struct{}
	once    sync.Once

	// 正在处理的消息
	inflight   sync.WaitGroup
	inflightMu sync.Mutex
	stopped    bool

	// 日志
	logger *zap.Logger
}

// NewHub 创建Hub
func NewHub(handler MessageHandler, logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		userClients: make(map[int64][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		handler:     handler,
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run 运行Hub，ctx取消后关闭所有连接，并等待正在处理的消息结束
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.shutdown()
		h.inflight.Wait()
	}()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			return
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.userMu.Lock()
	h.userClients[client.Invoker.ID] = append(h.userClients[client.Invoker.ID], client)
	h.userMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.Int64("user_id", client.Invoker.ID))
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	h.userMu.Lock()
	clients := h.userClients[client.Invoker.ID]
	for i, c := range clients {
		if c.ID == client.ID {
			h.userClients[client.Invoker.ID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.Invoker.ID]) == 0 {
		delete(h.userClients, client.Invoker.ID)
	}
	h.userMu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.Int64("user_id", client.Invoker.ID))
}

// shutdown 关闭所有客户端的发送通道，写协程随之退出并关闭连接
func (h *Hub) shutdown() {
	h.once.Do(func() {
		h.inflightMu.Lock()
		h.stopped = true
		h.inflightMu.Unlock()

		close(h.done)

		h.clientsMu.Lock()
		for id, client := range h.clients {
			close(client.Send)
			delete(h.clients, id)
		}
		h.clientsMu.Unlock()

		h.userMu.Lock()
		h.userClients = make(map[int64][]*Client)
		h.userMu.Unlock()

		h.logger.Info("WebSocket Hub已停止")
	})
}

// acquire 登记一条待处理消息，Hub已停止时返回false
func (h *Hub) acquire() bool {
	h.inflightMu.Lock()
	defer h.inflightMu.Unlock()
	if h.stopped {
		return false
	}
	h.inflight.Add(1)
	return true
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Register 注册客户端，Hub已停止时返回false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
