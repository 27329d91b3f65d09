package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/common/config"
)

// 视图名称（每个视图独立轮询、独立阈值）
const (
	ViewFloorPlan = "floorplan" // 楼层网格：节点状态
	ViewLiveChart = "livechart" // 实时传感器图表
	ViewAnalysis  = "analysis"  // 分析页：24 点序列 + 分布饼图
	ViewSensors   = "sensors"   // 传感器阵列：在线状态
)

// ViewConfig 单个消费视图的配置
type ViewConfig struct {
	Name           string
	PollInterval   time.Duration // 轮询间隔
	StaleThreshold time.Duration // 在线判定阈值
	SeriesStep     time.Duration // 合成时间线间隔
	LabelLayout    string        // 时间标签格式
	FallRate       float64       // 有运动时判为 Fall 的概率
	Seed           int64         // 随机种子，0 表示按启动时间生成
}

// Config 监控服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	HTTP struct {
		Addr string
	}

	// ThingSpeak 上游通道
	Feed struct {
		BaseURL    string
		ChannelID  string
		ReadAPIKey string
		Results    int // 每次拉取的最大条数（ThingSpeak 上限 8000）
		Timeout    time.Duration
		RetryCount int
	}

	Monitor struct {
		NodeID     string // 真实硬件所在节点，如 "A-101"
		WindowSize int    // 样本窗口上限

		// 连续失败后的抖动退避，Max 为 0 表示关闭
		Backoff struct {
			Base time.Duration
			Max  time.Duration
		}

		AlertView         string // 产生报警事件的视图，同一节点只由一个视图报警
		AlertStream       string // Redis Stream 名称
		AlertStreamMaxLen int64
		Views             []ViewConfig
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 默认值，随后由 DB_* / REDIS_* / MQTT_* 覆盖
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "codeblue"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 5
	cfg.Database.MaxIdle = 2
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "codeblue-monitor"
	cfg.MQTT.QoS = 1
	cfg.MQTT.TopicPrefix = "codeblue/nodes"
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8000")

	cfg.Feed.BaseURL = strings.TrimRight(getEnv("THINGSPEAK_BASE_URL", "https://api.thingspeak.com"), "/")
	cfg.Feed.ChannelID = getEnv("THINGSPEAK_CHANNEL_ID", "3272549")
	cfg.Feed.ReadAPIKey = getEnv("THINGSPEAK_READ_API_KEY", "")
	cfg.Feed.Results = getEnvInt("FEED_RESULTS", 20)
	cfg.Feed.Timeout = config.EnvMillis("FEED_TIMEOUT_MS", 10*time.Second)
	cfg.Feed.RetryCount = getEnvInt("FEED_RETRY_COUNT", 0)

	cfg.Monitor.NodeID = getEnv("NODE_ID", "A-101")
	cfg.Monitor.WindowSize = getEnvInt("WINDOW_SIZE", 20)
	cfg.Monitor.Backoff.Base = config.EnvMillis("POLL_BACKOFF_BASE_MS", 5*time.Second)
	cfg.Monitor.Backoff.Max = time.Duration(getEnvInt("POLL_BACKOFF_MAX_MS", 60000)) * time.Millisecond
	cfg.Monitor.AlertView = getEnv("ALERT_VIEW", ViewFloorPlan)
	cfg.Monitor.AlertStream = getEnv("ALERT_STREAM", "codeblue:alerts")
	cfg.Monitor.AlertStreamMaxLen = int64(getEnvInt("ALERT_STREAM_MAXLEN", 10000))
	cfg.Monitor.Views = loadViews()

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultViews 与前端各页面一致的默认参数
func DefaultViews() []ViewConfig {
	return []ViewConfig{
		{Name: ViewFloorPlan, PollInterval: 15 * time.Second, StaleThreshold: 300 * time.Second, SeriesStep: 15 * time.Second, LabelLayout: "15:04:05", FallRate: 0.05},
		{Name: ViewLiveChart, PollInterval: 15 * time.Second, StaleThreshold: 30 * time.Second, SeriesStep: 15 * time.Second, LabelLayout: "15:04:05", FallRate: 0.05},
		{Name: ViewAnalysis, PollInterval: 5 * time.Second, StaleThreshold: 30 * time.Second, SeriesStep: 60 * time.Second, LabelLayout: "15:04", FallRate: 0.05},
		{Name: ViewSensors, PollInterval: 15 * time.Second, StaleThreshold: 30 * time.Second, SeriesStep: 15 * time.Second, LabelLayout: "15:04:05", FallRate: 0.05},
	}
}

// loadViews 默认视图 + VIEW_<NAME>_* 环境变量覆盖
func loadViews() []ViewConfig {
	views := DefaultViews()
	for i := range views {
		v := &views[i]
		prefix := "VIEW_" + strings.ToUpper(v.Name) + "_"
		v.PollInterval = config.EnvMillis(prefix+"POLL_INTERVAL_MS", v.PollInterval)
		v.StaleThreshold = config.EnvMillis(prefix+"STALE_THRESHOLD_MS", v.StaleThreshold)
		v.SeriesStep = config.EnvMillis(prefix+"SERIES_STEP_MS", v.SeriesStep)
		v.LabelLayout = getEnv(prefix+"LABEL_LAYOUT", v.LabelLayout)
		if rate, err := strconv.ParseFloat(os.Getenv(prefix+"FALL_RATE"), 64); err == nil {
			v.FallRate = rate
		}
		if seed, err := strconv.ParseInt(os.Getenv(prefix+"SEED"), 10, 64); err == nil {
			v.Seed = seed
		}
	}
	return views
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Feed.ChannelID == "" {
		return fmt.Errorf("THINGSPEAK_CHANNEL_ID is required")
	}
	if c.Feed.Results <= 0 || c.Feed.Results > 8000 {
		return fmt.Errorf("FEED_RESULTS must be in [1, 8000], got %d", c.Feed.Results)
	}
	if c.Monitor.WindowSize <= 0 {
		return fmt.Errorf("WINDOW_SIZE must be positive, got %d", c.Monitor.WindowSize)
	}
	if c.Monitor.Backoff.Max < 0 {
		return fmt.Errorf("POLL_BACKOFF_MAX_MS must not be negative")
	}
	if _, ok := c.View(c.Monitor.AlertView); !ok {
		return fmt.Errorf("ALERT_VIEW %q is not a configured view", c.Monitor.AlertView)
	}
	seen := make(map[string]bool, len(c.Monitor.Views))
	for _, v := range c.Monitor.Views {
		if seen[v.Name] {
			return fmt.Errorf("duplicate view %q", v.Name)
		}
		seen[v.Name] = true
		if math.IsNaN(v.FallRate) || v.FallRate < 0 || v.FallRate > 1 {
			return fmt.Errorf("view %s: fall rate must be in [0, 1], got %v", v.Name, v.FallRate)
		}
	}
	return nil
}

// View 按名称查找视图配置
func (c *Config) View(name string) (ViewConfig, bool) {
	for _, v := range c.Monitor.Views {
		if v.Name == name {
			return v, true
		}
	}
	return ViewConfig{}, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
