package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 必须小于 pongWait
	maxMessageSize = 4 * 1024
	sendBufferSize = 64
)

// Client 单个 WebSocket 连接
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte // hub 广播，由 hub 关闭

	// replies 命令应答，只由本连接写入
	replies chan []byte

	id          string
	ipAddress   string
	connectedAt time.Time
}

func newClient(hub *Hub, conn *websocket.Conn, ipAddress string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		replies:     make(chan []byte, 8),
		id:          uuid.New().String(),
		ipAddress:   ipAddress,
		connectedAt: time.Now(),
	}
}

// readPump 读取客户端命令，连接断开时注销
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		c.handleCommand(message)
	}
}

// writePump 把 send 中的消息写到连接，并定时 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case reply := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleCommand(raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.reply(Message{Type: TypeError, Timestamp: time.Now(), Error: "invalid message format"})
		return
	}

	switch cmd.Type {
	case "ping":
		c.reply(Message{Type: TypePong, Timestamp: time.Now()})
	case "get_snapshot":
		if c.hub.source == nil {
			c.reply(Message{Type: TypeError, Timestamp: time.Now(), Error: "no snapshot source"})
			return
		}
		snap, ok := c.hub.source.Snapshot(cmd.View)
		if !ok {
			c.reply(Message{Type: TypeError, Timestamp: time.Now(), View: cmd.View, Error: "unknown view"})
			return
		}
		c.reply(Message{Type: TypeSnapshot, Timestamp: time.Now(), View: snap.View, Data: snap})
	default:
		c.reply(Message{Type: TypeError, Timestamp: time.Now(), Error: "unknown command: " + cmd.Type})
	}
}

// reply 应答当前客户端；缓冲已满时丢弃
func (c *Client) reply(msg Message) {
	data, err := serializeMessage(msg)
	if err != nil {
		return
	}
	select {
	case c.replies <- data:
	default:
	}
}
