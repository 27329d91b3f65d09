package websocket

import (
	"encoding/json"
	"time"
)

// Message types
const (
	TypeSnapshot = "snapshot"
	TypePong     = "pong"
	TypeError    = "error"
)

// Message 服务端推送的消息
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	View      string      `json:"view,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Command 客户端发来的命令
// {"type":"ping"} / {"type":"get_snapshot","view":"analysis"}
type Command struct {
	Type string `json:"type"`
	View string `json:"view,omitempty"`
}

func serializeMessage(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
