package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ChannelFeedResponse ThingSpeak feeds.json 响应
type ChannelFeedResponse struct {
	Channel struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		LastEntryID int64  `json:"last_entry_id"`
	} `json:"channel"`
	Feeds []FeedEntry `json:"feeds"`
}

// FeedEntry ThingSpeak 原始记录，字段可能为 null
type FeedEntry struct {
	CreatedAt string  `json:"created_at"`
	EntryID   int64   `json:"entry_id"`
	Field1    *string `json:"field1"`
	Field2    *string `json:"field2"`
	Field3    *string `json:"field3"`
	Field4    *string `json:"field4"`
	Field5    *string `json:"field5"`
	Field6    *string `json:"field6"`
	Field7    *string `json:"field7"`
	Field8    *string `json:"field8"`
}

// ClientConfig ThingSpeak 客户端配置
type ClientConfig struct {
	BaseURL    string
	ChannelID  string
	ReadAPIKey string
	Results    int
	Timeout    time.Duration
	RetryCount int
}

// ThingSpeakClient 拉取 ThingSpeak 通道最近 N 条记录
type ThingSpeakClient struct {
	httpClient *resty.Client
	cfg        ClientConfig
	logger     *zap.Logger
}

// NewThingSpeakClient 创建 ThingSpeak 客户端
func NewThingSpeakClient(cfg ClientConfig, logger *zap.Logger) *ThingSpeakClient {
	if cfg.Results <= 0 {
		cfg.Results = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &ThingSpeakClient{
		httpClient: client,
		cfg:        cfg,
		logger:     logger,
	}
}

// Fetch 拉取最近的记录，按 ThingSpeak 返回顺序（旧 -> 新）
// 任何网络错误、非 2xx、解析失败都返回 error，由调用方归一为空窗口
func (c *ThingSpeakClient) Fetch(ctx context.Context) ([]models.SensorSample, error) {
	var body ChannelFeedResponse
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("results", strconv.Itoa(c.cfg.Results)).
		SetResult(&body)
	if c.cfg.ReadAPIKey != "" {
		req.SetQueryParam("api_key", c.cfg.ReadAPIKey)
	}

	resp, err := req.Get(fmt.Sprintf("/channels/%s/feeds.json", c.cfg.ChannelID))
	if err != nil {
		c.logger.Warn("ThingSpeak request failed",
			zap.String("channel_id", c.cfg.ChannelID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to fetch channel %s: %w", c.cfg.ChannelID, err)
	}
	if resp.IsError() {
		c.logger.Warn("ThingSpeak returned error status",
			zap.String("channel_id", c.cfg.ChannelID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("channel %s: unexpected status %d", c.cfg.ChannelID, resp.StatusCode())
	}

	samples := make([]models.SensorSample, 0, len(body.Feeds))
	for _, f := range body.Feeds {
		samples = append(samples, c.toSample(f))
	}

	c.logger.Debug("Fetched ThingSpeak feed",
		zap.String("channel_id", c.cfg.ChannelID),
		zap.Int("sample_count", len(samples)),
	)
	return samples, nil
}

// toSample created_at 无法解析时保留零值，该样本会被判定为陈旧
func (c *ThingSpeakClient) toSample(f FeedEntry) models.SensorSample {
	createdAt, err := time.Parse(time.RFC3339, f.CreatedAt)
	if err != nil {
		c.logger.Warn("Invalid created_at in feed entry",
			zap.Int64("entry_id", f.EntryID),
			zap.String("created_at", f.CreatedAt),
		)
	}
	return models.SensorSample{
		CreatedAt: createdAt,
		EntryID:   f.EntryID,
		Field1:    deref(f.Field1),
		Field2:    deref(f.Field2),
		Field3:    deref(f.Field3),
		Field4:    deref(f.Field4),
		Field5:    deref(f.Field5),
		Field6:    deref(f.Field6),
		Field7:    deref(f.Field7),
		Field8:    deref(f.Field8),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
