package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/monitor"
	"go.uber.org/zap"
)

// MQTTPublisher MQTT 发布（common/mqtt.Client）
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// NodeStatusMessage 节点状态消息（retained）
type NodeStatusMessage struct {
	monitor.NodeStatus
	View           string `json:"view"`
	Label          string `json:"label"`
	ThreatLevel    int    `json:"threat_level"`
	EmergencyClass int    `json:"emergency_class"`
	UpdatedAt      int64  `json:"updated_at"` // unix 秒
}

// MQTTStatusPublisher 把指定视图的节点状态发布到 {prefix}/{node}/status
// 只有状态或标签变化时才发布
type MQTTStatusPublisher struct {
	client MQTTPublisher
	prefix string
	view   string
	qos    byte
	logger *zap.Logger

	last string
}

// NewMQTTStatusPublisher 创建 MQTT 状态发布器
func NewMQTTStatusPublisher(client MQTTPublisher, prefix, view string, qos byte, logger *zap.Logger) *MQTTStatusPublisher {
	return &MQTTStatusPublisher{
		client: client,
		prefix: strings.TrimRight(prefix, "/"),
		view:   view,
		qos:    qos,
		logger: logger,
	}
}

// StatusTopic 节点状态 topic
func (p *MQTTStatusPublisher) StatusTopic(nodeID string) string {
	return fmt.Sprintf("%s/%s/status", p.prefix, nodeID)
}

// PublishSnapshot 只处理配置的视图，其余忽略
func (p *MQTTStatusPublisher) PublishSnapshot(ctx context.Context, snap *monitor.Snapshot) error {
	if snap.View != p.view {
		return nil
	}
	key := string(snap.Assessment.State) + "|" + string(snap.Assessment.Label)
	if key == p.last {
		return nil
	}

	msg := NodeStatusMessage{
		NodeStatus:     snap.NodeStatus(),
		View:           snap.View,
		Label:          string(snap.Assessment.Label),
		ThreatLevel:    snap.Assessment.ThreatLevel,
		EmergencyClass: snap.Assessment.EmergencyClass,
		UpdatedAt:      snap.GeneratedAt.Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal node status: %w", err)
	}

	topic := p.StatusTopic(snap.NodeID)
	if err := p.client.Publish(topic, p.qos, true, payload); err != nil {
		return fmt.Errorf("failed to publish node status: %w", err)
	}
	p.last = key

	p.logger.Info("Published node status",
		zap.String("topic", topic),
		zap.String("state", string(snap.Assessment.State)),
		zap.String("label", string(snap.Assessment.Label)),
	)
	return nil
}
