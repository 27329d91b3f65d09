package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/config"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/store"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/telemetry"
)

// ErrStaleResult 结果序号不新于已应用的序号
var ErrStaleResult = errors.New("stale poll result")

// View 单个消费视图：私有样本窗口 + 上一次的派生结果
type View struct {
	cfg    config.ViewConfig
	nodeID string
	store  *store.SampleStore
	rng    telemetry.RandomSource

	mu           sync.RWMutex
	lastSeq      uint64
	distribution models.Distribution
	series       []models.SeriesPoint
	snapshot     Snapshot
}

// NewView 创建视图；rng 为 nil 时按 cfg.Seed 创建（Seed 为 0 使用当前时间）
func NewView(cfg config.ViewConfig, nodeID string, windowSize int, rng telemetry.RandomSource) *View {
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = telemetry.NewSeededSource(seed)
	}
	v := &View{
		cfg:          cfg,
		nodeID:       nodeID,
		store:        store.NewSampleStore(windowSize),
		rng:          rng,
		distribution: telemetry.DefaultDistribution(),
		series:       []models.SeriesPoint{},
	}
	v.snapshot = Snapshot{
		View:         cfg.Name,
		NodeID:       nodeID,
		Assessment:   telemetry.Classify(nil, telemetry.LivenessVerdict{}),
		Series:       []models.SeriesPoint{},
		Distribution: v.distribution.Clone(),
		Window:       models.SampleWindow{},
	}
	return v
}

func (v *View) Name() string              { return v.cfg.Name }
func (v *View) Config() config.ViewConfig { return v.cfg }

// Apply 应用一次拉取结果并重新派生
// 拉取失败等同于空窗口：保留上一次的分布与序列，在线状态与威胁重新计算（离线）
// seq 不大于已应用序号的结果被丢弃，返回 ErrStaleResult
func (v *View) Apply(seq uint64, samples []models.SensorSample, fetchErr error, now time.Time) (Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if seq <= v.lastSeq {
		return v.snapshot.Clone(), ErrStaleResult
	}
	v.lastSeq = seq

	if fetchErr != nil {
		samples = nil
	}
	window := v.store.Replace(samples)

	liveness := telemetry.EvaluateLiveness(window, now, v.cfg.StaleThreshold)
	assessment := telemetry.Classify(window, liveness)

	if len(window) > 0 {
		v.series = telemetry.SynthesizeSeries(window, now, telemetry.SeriesOptions{
			Step:        v.cfg.SeriesStep,
			LabelLayout: v.cfg.LabelLayout,
		}, v.rng)
		v.distribution = telemetry.AggregateDistribution(window, v.distribution, v.cfg.FallRate, v.rng)
	}

	snap := Snapshot{
		View:         v.cfg.Name,
		NodeID:       v.nodeID,
		Seq:          seq,
		GeneratedAt:  now,
		SampleCount:  len(window),
		Liveness:     liveness,
		Assessment:   assessment,
		Series:       v.series,
		Distribution: v.distribution,
		Window:       window,
	}
	if latest, ok := window.Latest(); ok {
		snap.Latest = &latest
		age := liveness.Age.Seconds()
		snap.AgeSeconds = &age
	}
	if fetchErr != nil {
		snap.FetchError = fetchErr.Error()
	}

	v.snapshot = snap.Clone()
	return snap.Clone(), nil
}

// Snapshot 最近一次派生结果
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot.Clone()
}
