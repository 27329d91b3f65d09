package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/config"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/metrics"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/scheduler"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/telemetry"
	"go.uber.org/zap"
)

// SnapshotPublisher 快照下游（Redis 缓存、WebSocket、MQTT）
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap *Snapshot) error
}

// AlertSink 报警事件下游（Redis Stream、PostgreSQL）
type AlertSink interface {
	HandleAlert(ctx context.Context, ev *models.AlertEvent) error
}

// SampleRecorder 样本历史入库
type SampleRecorder interface {
	RecordSamples(ctx context.Context, nodeID string, samples []models.SensorSample) (int64, error)
}

// sinkTimeout 单个下游写入的超时，下游慢不阻塞下一次轮询太久
const sinkTimeout = 5 * time.Second

// Service 监控服务：每个视图一个轮询器，派生后分发给各个下游
type Service struct {
	config  *config.Config
	fetcher scheduler.Fetcher
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	views   map[string]*View
	order   []string
	pollers map[string]*scheduler.Poller

	snapshotSinks map[string]SnapshotPublisher
	alertSinks    map[string]AlertSink
	recorder      SampleRecorder

	recordMu     sync.Mutex
	lastRecorded int64
	listenersMu  sync.RWMutex
	listeners    []func(Snapshot)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option 服务可选项
type Option func(*Service)

// WithSnapshotPublisher 注册快照下游，name 用于日志与指标
func WithSnapshotPublisher(name string, p SnapshotPublisher) Option {
	return func(s *Service) { s.snapshotSinks[name] = p }
}

// WithAlertSink 注册报警下游
func WithAlertSink(name string, sink AlertSink) Option {
	return func(s *Service) { s.alertSinks[name] = sink }
}

// WithSampleRecorder 注册样本历史入库
func WithSampleRecorder(r SampleRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithMetrics 注册 Prometheus 指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom 所有视图共用指定随机源（测试用）
func WithRandom(rng telemetry.RandomSource) Option {
	return func(s *Service) {
		for name, v := range s.views {
			s.views[name] = NewView(v.cfg, v.nodeID, v.store.Bound(), rng)
		}
	}
}

// NewService 创建监控服务
func NewService(cfg *config.Config, fetcher scheduler.Fetcher, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		config:        cfg,
		fetcher:       fetcher,
		logger:        logger,
		now:           time.Now,
		views:         make(map[string]*View, len(cfg.Monitor.Views)),
		pollers:       make(map[string]*scheduler.Poller, len(cfg.Monitor.Views)),
		snapshotSinks: make(map[string]SnapshotPublisher),
		alertSinks:    make(map[string]AlertSink),
	}
	for _, vc := range cfg.Monitor.Views {
		s.views[vc.Name] = NewView(vc, cfg.Monitor.NodeID, cfg.Monitor.WindowSize, nil)
		s.order = append(s.order, vc.Name)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 为每个视图启动轮询
func (s *Service) Start(ctx context.Context) error {
	if s.cancel != nil {
		return errors.New("monitor service already started")
	}
	if len(s.views) == 0 {
		return errors.New("no views configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, name := range s.order {
		view := s.views[name]
		vc := view.Config()
		viewName := name
		poller := scheduler.NewPoller(scheduler.Options{
			Name:        viewName,
			Interval:    vc.PollInterval,
			BackoffBase: s.config.Monitor.Backoff.Base,
			BackoffMax:  s.config.Monitor.Backoff.Max,
			OnSkip:      func() { s.metrics.SkippedTick(viewName) },
		}, s.fetcher, s.handler(view), s.logger)
		s.pollers[name] = poller

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := poller.Run(ctx); err != nil {
				s.logger.Error("Poller exited with error", zap.String("view", viewName), zap.Error(err))
			}
		}()
	}

	s.logger.Info("Monitor service started",
		zap.String("node_id", s.config.Monitor.NodeID),
		zap.Strings("views", s.order),
		zap.Int("snapshot_sinks", len(s.snapshotSinks)),
		zap.Int("alert_sinks", len(s.alertSinks)),
	)
	return nil
}

// Stop 停止所有轮询，等待退出
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Monitor service stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("monitor service stop: %w", ctx.Err())
	}
}

func (s *Service) handler(view *View) scheduler.Handler {
	return func(ctx context.Context, r scheduler.Result) {
		s.Process(ctx, view, r)
	}
}

// Process 应用一次拉取结果并分发（轮询 goroutine 中调用，也可在测试中直接调用）
func (s *Service) Process(ctx context.Context, view *View, r scheduler.Result) {
	prev := view.Snapshot()
	snap, err := view.Apply(r.Seq, r.Samples, r.Err, s.now())
	if errors.Is(err, ErrStaleResult) {
		s.metrics.ObservePoll(view.Name(), metrics.OutcomeStale, r.Duration)
		s.logger.Debug("Discarded out-of-order poll result",
			zap.String("view", view.Name()),
			zap.Uint64("seq", r.Seq),
		)
		return
	}

	outcome := metrics.OutcomeOK
	switch {
	case r.Err != nil:
		outcome = metrics.OutcomeError
	case snap.SampleCount == 0:
		outcome = metrics.OutcomeEmpty
	}
	s.metrics.ObservePoll(view.Name(), outcome, r.Duration)
	s.metrics.SetNodeState(view.Name(), snap.NodeID, snap.Liveness.Live, snap.Assessment.Severity(), snap.SampleCount)

	if prev.Assessment.State != snap.Assessment.State {
		s.logger.Info("Node state changed",
			zap.String("view", view.Name()),
			zap.String("node_id", snap.NodeID),
			zap.String("from", string(prev.Assessment.State)),
			zap.String("to", string(snap.Assessment.State)),
			zap.String("label", string(snap.Assessment.Label)),
		)
	}

	s.recordSamples(ctx, snap)
	s.publishSnapshot(ctx, &snap)

	// 各视图拉取同一节点，只由报警视图产生事件
	if view.Name() == s.config.Monitor.AlertView {
		if ev, ok := DetectTransition(prev, snap, snap.GeneratedAt); ok {
			s.metrics.AlertEmitted(ev.View, string(ev.Label))
			s.publishAlert(ctx, ev)
		}
	}

	s.notify(snap)
}

func (s *Service) publishSnapshot(ctx context.Context, snap *Snapshot) {
	for name, sink := range s.snapshotSinks {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := sink.PublishSnapshot(sinkCtx, snap); err != nil {
			s.metrics.SinkError(name)
			s.logger.Warn("Failed to publish snapshot",
				zap.String("sink", name),
				zap.String("view", snap.View),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (s *Service) publishAlert(ctx context.Context, ev *models.AlertEvent) {
	s.logger.Warn("Alert event",
		zap.String("event_id", ev.EventID),
		zap.String("view", ev.View),
		zap.String("node_id", ev.NodeID),
		zap.String("state", string(ev.State)),
		zap.String("label", string(ev.Label)),
	)
	for name, sink := range s.alertSinks {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := sink.HandleAlert(sinkCtx, ev); err != nil {
			s.metrics.SinkError(name)
			s.logger.Error("Failed to deliver alert event",
				zap.String("sink", name),
				zap.String("event_id", ev.EventID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// recordSamples 各视图拉取的是同一通道，只写入 entry_id 大于已写入最大值的样本
func (s *Service) recordSamples(ctx context.Context, snap Snapshot) {
	if s.recorder == nil || len(snap.Window) == 0 {
		return
	}

	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	fresh := make([]models.SensorSample, 0, len(snap.Window))
	maxID := s.lastRecorded
	for _, sample := range snap.Window {
		if sample.EntryID > s.lastRecorded {
			fresh = append(fresh, sample)
			if sample.EntryID > maxID {
				maxID = sample.EntryID
			}
		}
	}
	if len(fresh) == 0 {
		return
	}

	sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	n, err := s.recorder.RecordSamples(sinkCtx, snap.NodeID, fresh)
	if err != nil {
		s.metrics.SinkError("history")
		s.logger.Warn("Failed to record samples", zap.Int("count", len(fresh)), zap.Error(err))
		return
	}
	s.lastRecorded = maxID
	s.logger.Debug("Recorded samples", zap.Int64("inserted", n), zap.Int64("last_entry_id", maxID))
}

// Subscribe 注册快照回调（在轮询 goroutine 中调用，回调不可阻塞）
func (s *Service) Subscribe(fn func(Snapshot)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify(snap Snapshot) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, fn := range s.listeners {
		fn(snap.Clone())
	}
}

// View 按名称获取视图
func (s *Service) View(name string) (*View, bool) {
	v, ok := s.views[name]
	return v, ok
}

// ViewNames 视图名称（配置顺序）
func (s *Service) ViewNames() []string {
	return append([]string(nil), s.order...)
}

// Snapshot 视图的最新快照
func (s *Service) Snapshot(name string) (Snapshot, bool) {
	v, ok := s.views[name]
	if !ok {
		return Snapshot{}, false
	}
	return v.Snapshot(), true
}

// Snapshots 所有视图的最新快照（配置顺序）
func (s *Service) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.views[name].Snapshot())
	}
	return out
}

// PollerStats 各视图轮询计数（未启动时为空）
func (s *Service) PollerStats() map[string]scheduler.Stats {
	out := make(map[string]scheduler.Stats, len(s.pollers))
	for name, p := range s.pollers {
		out[name] = p.Stats()
	}
	return out
}

// SinkNames 已注册的下游名称
func (s *Service) SinkNames() []string {
	names := make([]string, 0, len(s.snapshotSinks)+len(s.alertSinks))
	for name := range s.snapshotSinks {
		names = append(names, name)
	}
	for name := range s.alertSinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
