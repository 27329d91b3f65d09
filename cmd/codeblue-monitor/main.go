package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/common/database"
	logpkg "github.com/NAREN-BHARGAV/CodeBlueHalo/common/logger"
	mqttpkg "github.com/NAREN-BHARGAV/CodeBlueHalo/common/mqtt"
	redispkg "github.com/NAREN-BHARGAV/CodeBlueHalo/common/redis"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/config"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/feed"
	httpapi "github.com/NAREN-BHARGAV/CodeBlueHalo/internal/http"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/metrics"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/monitor"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/publish"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/repository"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/service"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/store"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "codeblue-monitor")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting codeblue-monitor service",
		zap.String("channel_id", cfg.Feed.ChannelID),
		zap.String("node_id", cfg.Monitor.NodeID),
		zap.Int("views", len(cfg.Monitor.Views)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics()
	fetcher := feed.NewThingSpeakClient(feed.ClientConfig{
		BaseURL:    cfg.Feed.BaseURL,
		ChannelID:  cfg.Feed.ChannelID,
		ReadAPIKey: cfg.Feed.ReadAPIKey,
		Results:    cfg.Feed.Results,
		Timeout:    cfg.Feed.Timeout,
		RetryCount: cfg.Feed.RetryCount,
	}, logger)

	opts := []monitor.Option{monitor.WithMetrics(m)}

	// Redis：视图快照缓存 + 报警流（可选）
	var snapshotCache *publish.SnapshotCache
	if cfg.Redis.Enabled {
		redisClient, err := redispkg.Connect(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn("Redis enabled but ping failed, snapshots will not be cached", zap.Error(err))
		} else {
			defer redispkg.Close(redisClient)
			snapshotCache = publish.NewSnapshotCache(store.NewRedisKVStore(redisClient), snapshotTTL(cfg), logger)
			alerts := publish.NewAlertStreamPublisher(
				redispkg.NewStreamPublisher(redisClient, cfg.Monitor.AlertStreamMaxLen),
				cfg.Monitor.AlertStream, logger)
			opts = append(opts,
				monitor.WithSnapshotPublisher("redis", snapshotCache),
				monitor.WithAlertSink("redis-stream", alerts),
			)
			logger.Info("Redis enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// PostgreSQL：样本与报警历史（可选）
	var history *repository.HistoryRepository
	if cfg.Database.Enabled {
		var db *sql.DB
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err == nil {
			db = d
		} else {
			logger.Warn("DB enabled but connection failed, history disabled", zap.Error(err))
		}
		if db != nil {
			defer database.Close(db)
			repo := repository.NewHistoryRepository(db, logger)
			if err := repo.EnsureSchema(ctx); err != nil {
				logger.Warn("Failed to ensure history schema, history disabled", zap.Error(err))
			} else {
				history = repo
				opts = append(opts,
					monitor.WithSampleRecorder(repo),
					monitor.WithAlertSink("postgres", repo),
				)
				logger.Info("DB enabled for codeblue-monitor")
			}
		}
	}

	// MQTT：楼层网格节点状态（可选）
	if cfg.MQTT.Enabled {
		client, err := mqttpkg.NewClient(&cfg.MQTT, logger)
		if err != nil {
			logger.Warn("MQTT enabled but connect failed, node status will not be published", zap.Error(err))
		} else {
			defer client.Disconnect()
			status := publish.NewMQTTStatusPublisher(client, cfg.MQTT.TopicPrefix, config.ViewFloorPlan, cfg.MQTT.QoS, logger)
			opts = append(opts, monitor.WithSnapshotPublisher("mqtt", status))
			logger.Info("MQTT enabled", zap.String("broker", cfg.MQTT.Broker))
		}
	}

	monitorService := monitor.NewService(cfg, fetcher, logger, opts...)

	// WebSocket 广播：订阅快照回调（回调内只做非阻塞入队）
	hub := websocket.NewHub(monitorService, m, logger)
	monitorService.Subscribe(hub.SnapshotListener(ctx))
	go hub.Run(ctx)

	if err := monitorService.Start(ctx); err != nil {
		logger.Fatal("Failed to start monitor service", zap.Error(err))
	}
	logger.Info("Monitor started", zap.Strings("sinks", monitorService.SinkNames()))

	router := httpapi.NewRouter(m, logger)
	var alertHistory httpapi.AlertHistory
	if history != nil {
		alertHistory = history
	}
	monitorHandler := httpapi.NewMonitorHandler(monitorService, alertHistory, config.ViewFloorPlan, logger)
	if snapshotCache != nil {
		monitorHandler.SetSnapshotCache(snapshotCache)
	}
	router.RegisterMonitorRoutes(monitorHandler)
	router.RegisterWebSocket(websocket.NewHandler(hub))
	router.RegisterMetrics()

	srv := service.NewServer(cfg.HTTP.Addr, router, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// 等待中断信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", zap.Error(err))
	}
	if err := monitorService.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping monitor service", zap.Error(err))
	}
	cancel()

	logger.Info("Service stopped")
}

// snapshotTTL 快照缓存保留 3 个轮询周期
func snapshotTTL(cfg *config.Config) func(view string) time.Duration {
	return func(view string) time.Duration {
		if vc, ok := cfg.View(view); ok {
			return 3 * vc.PollInterval
		}
		return time.Minute
	}
}
