package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/telemetry"
	"go.uber.org/zap"
)

// Fetcher 上游数据源
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.SensorSample, error)
}

// Result 一次拉取的结果，Seq 单调递增
type Result struct {
	Seq       uint64
	Samples   []models.SensorSample
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Handler 处理拉取结果（在轮询 goroutine 中串行调用）
type Handler func(ctx context.Context, r Result)

// Options 轮询参数
type Options struct {
	Name        string
	Interval    time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration // 0 表示关闭退避
	Random      telemetry.RandomSource
	OnSkip      func() // 上一次拉取未完成时跳过的 tick
}

// Stats 轮询计数
type Stats struct {
	Ticks               uint64 `json:"ticks"`
	Skipped             uint64 `json:"skipped"`
	Delivered           uint64 `json:"delivered"`
	Failures            uint64 `json:"failures"`
	Dropped             uint64 `json:"dropped"`
	ConsecutiveFailures int64  `json:"consecutive_failures"`
}

// Poller 单个视图的定时拉取器
// 上一次拉取未完成时跳过本次 tick；取消后到达的结果直接丢弃
type Poller struct {
	opts    Options
	fetcher Fetcher
	handler Handler
	logger  *zap.Logger

	busy        atomic.Bool
	seq         atomic.Uint64
	ticks       atomic.Uint64
	skipped     atomic.Uint64
	delivered   atomic.Uint64
	failures    atomic.Uint64
	dropped     atomic.Uint64
	consecutive atomic.Int64
}

// NewPoller 创建轮询器
func NewPoller(opts Options, fetcher Fetcher, handler Handler, logger *zap.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.Random == nil {
		opts.Random = telemetry.NewSeededSource(time.Now().UnixNano())
	}
	return &Poller{
		opts:    opts,
		fetcher: fetcher,
		handler: handler,
		logger:  logger.With(zap.String("view", opts.Name)),
	}
}

// Run 立即拉取一次，然后按间隔拉取，直到 ctx 取消
func (p *Poller) Run(ctx context.Context) error {
	results := make(chan Result)
	var wg sync.WaitGroup
	defer wg.Wait()

	timer := time.NewTimer(0)
	defer timer.Stop()

	p.logger.Info("Starting poller", zap.Duration("interval", p.opts.Interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return nil
		case <-timer.C:
			p.tick(ctx, results, &wg)
			timer.Reset(p.opts.Interval)
		case r := <-results:
			if ctx.Err() != nil {
				p.dropped.Add(1)
				p.busy.Store(false)
				continue
			}
			k := p.record(r)
			p.handler(ctx, r)
			p.busy.Store(false)

			if r.Err != nil && p.opts.BackoffMax > 0 {
				delay := BackoffDelay(p.opts.Interval, p.opts.BackoffBase, p.opts.BackoffMax, int(k), p.opts.Random.Float64())
				resetTimer(timer, delay)
				p.logger.Warn("Poll failed, backing off",
					zap.Int64("consecutive_failures", k),
					zap.Duration("next_delay", delay),
					zap.Error(r.Err),
				)
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context, results chan<- Result, wg *sync.WaitGroup) {
	p.ticks.Add(1)
	if !p.busy.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		if p.opts.OnSkip != nil {
			p.opts.OnSkip()
		}
		p.logger.Debug("Previous fetch still running, tick skipped")
		return
	}

	seq := p.seq.Add(1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		started := time.Now()
		samples, err := p.fetcher.Fetch(ctx)
		r := Result{
			Seq:       seq,
			Samples:   samples,
			Err:       err,
			StartedAt: started,
			Duration:  time.Since(started),
		}
		select {
		case results <- r:
		case <-ctx.Done():
			p.dropped.Add(1)
			p.busy.Store(false)
		}
	}()
}

// record 更新计数，返回当前连续失败次数
func (p *Poller) record(r Result) int64 {
	p.delivered.Add(1)
	if r.Err != nil {
		p.failures.Add(1)
		return p.consecutive.Add(1)
	}
	p.consecutive.Store(0)
	return 0
}

// Stats 当前计数快照
func (p *Poller) Stats() Stats {
	return Stats{
		Ticks:               p.ticks.Load(),
		Skipped:             p.skipped.Load(),
		Delivered:           p.delivered.Load(),
		Failures:            p.failures.Load(),
		Dropped:             p.dropped.Load(),
		ConsecutiveFailures: p.consecutive.Load(),
	}
}

func (p *Poller) Name() string { return p.opts.Name }

// BackoffDelay 连续失败 k 次后的下一次间隔：
// interval + min(base*2^(k-1), max) * (0.5 + jitter/2)
// max <= 0 或 k <= 0 时返回 interval
func BackoffDelay(interval, base, max time.Duration, k int, jitter float64) time.Duration {
	if max <= 0 || k <= 0 || base <= 0 {
		return interval
	}
	if jitter < 0 || jitter != jitter {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}

	d := base
	for i := 1; i < k && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return interval + time.Duration(float64(d)*(0.5+jitter/2))
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
