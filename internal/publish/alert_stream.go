package publish

import (
	"context"
	"fmt"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"go.uber.org/zap"
)

// StreamWriter Redis Stream 写入（common/redis.StreamPublisher）
type StreamWriter interface {
	PublishJSON(ctx context.Context, stream string, data interface{}) (string, error)
}

// AlertStreamPublisher 报警事件写入 Redis Stream
type AlertStreamPublisher struct {
	writer StreamWriter
	stream string
	logger *zap.Logger
}

// NewAlertStreamPublisher 创建报警流发布器
func NewAlertStreamPublisher(writer StreamWriter, stream string, logger *zap.Logger) *AlertStreamPublisher {
	return &AlertStreamPublisher{writer: writer, stream: stream, logger: logger}
}

// HandleAlert 发布报警事件
func (p *AlertStreamPublisher) HandleAlert(ctx context.Context, ev *models.AlertEvent) error {
	id, err := p.writer.PublishJSON(ctx, p.stream, ev)
	if err != nil {
		return fmt.Errorf("failed to publish alert event %s: %w", ev.EventID, err)
	}
	p.logger.Debug("Published alert event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("event_id", ev.EventID),
	)
	return nil
}
