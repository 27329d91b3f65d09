package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/metrics"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/monitor"
	"go.uber.org/zap"
)

// SnapshotSource 提供当前快照（新连接的初始数据、get_snapshot 命令）
type SnapshotSource interface {
	Snapshots() []monitor.Snapshot
	Snapshot(name string) (monitor.Snapshot, bool)
}

// Hub 管理所有 WebSocket 连接并广播快照
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex

	source  SnapshotSource
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHub 创建 Hub
func NewHub(source SnapshotSource, m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		source:     source,
		metrics:    m,
		logger:     logger,
	}
}

// Run 主循环，ctx 取消时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			h.metrics.SetWebSocketClients(count)
			h.logger.Info("WebSocket client connected",
				zap.String("client_id", client.id),
				zap.String("ip", client.ipAddress),
				zap.Int("total", count),
			)
			h.sendInitialData(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			dead := make([]*Client, 0)
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 发送缓冲已满，断开
					dead = append(dead, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range dead {
				h.removeClient(client)
			}
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.SetWebSocketClients(count)
	h.logger.Info("WebSocket client disconnected",
		zap.String("client_id", client.id),
		zap.Int("total", count),
	)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.metrics.SetWebSocketClients(0)
}

func (h *Hub) sendInitialData(client *Client) {
	if h.source == nil {
		return
	}
	for _, snap := range h.source.Snapshots() {
		msg, err := snapshotMessage(&snap)
		if err != nil {
			continue
		}
		select {
		case client.send <- msg:
		default:
			return
		}
	}
}

// PublishSnapshot 广播快照（缓冲满时丢弃，不阻塞轮询）
func (h *Hub) PublishSnapshot(ctx context.Context, snap *monitor.Snapshot) error {
	msg, err := snapshotMessage(snap)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- msg:
		return nil
	default:
		return fmt.Errorf("websocket broadcast buffer full")
	}
}

// SnapshotListener 快照回调；广播缓冲满时丢弃并计入 sink 错误
func (h *Hub) SnapshotListener(ctx context.Context) func(monitor.Snapshot) {
	return func(snap monitor.Snapshot) {
		if err := h.PublishSnapshot(ctx, &snap); err != nil {
			h.metrics.SinkError("websocket")
			h.logger.Debug("Dropped websocket snapshot", zap.String("view", snap.View), zap.Error(err))
		}
	}
}

// Register 注册连接，hub 已停止时返回 false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销连接
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func snapshotMessage(snap *monitor.Snapshot) ([]byte, error) {
	msg, err := serializeMessage(Message{
		Type:      TypeSnapshot,
		Timestamp: time.Now(),
		View:      snap.View,
		Data:      snap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot message: %w", err)
	}
	return msg, nil
}
