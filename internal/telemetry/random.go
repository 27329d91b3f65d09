package telemetry

import (
	"math/rand"
	"sync"
)

// RandomSource 可注入的随机源，返回 [0,1) 内的浮点数
// 派生逻辑只通过该接口取随机数，测试可提供确定序列
type RandomSource interface {
	Float64() float64
}

// ZeroSource 零熵随机源，始终返回 0
type ZeroSource struct{}

func (ZeroSource) Float64() float64 { return 0 }

// lockedSource 并发安全的带种子随机源
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededSource 创建指定种子的随机源，相同种子产生相同序列
func NewSeededSource(seed int64) RandomSource {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// clamp01 把外部随机源的越界值压回 [0,1)
func clamp01(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 0.9999999999
	}
	return v
}

func draw(rng RandomSource) float64 {
	if rng == nil {
		return 0
	}
	return clamp01(rng.Float64())
}
