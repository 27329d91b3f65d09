package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher 基于 Redis Streams 的 JSON 发布器
// maxLen > 0 时使用近似裁剪（XADD MAXLEN ~），避免报警流无限增长
type StreamPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewStreamPublisher 创建 Stream 发布器
func NewStreamPublisher(client *redis.Client, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, maxLen: maxLen}
}

// PublishJSON 发布 JSON 消息到 Redis Streams，返回消息 ID
func (p *StreamPublisher) PublishJSON(ctx context.Context, stream string, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return id, nil
}
