package store

import (
	"sync"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
)

// SampleStore 单个视图私有的样本窗口
// 每次成功轮询整体替换，不做增量合并；读出的窗口都是拷贝
type SampleStore struct {
	mu     sync.RWMutex
	bound  int
	window models.SampleWindow
}

// NewSampleStore 创建样本窗口，bound <= 0 时使用 20
func NewSampleStore(bound int) *SampleStore {
	if bound <= 0 {
		bound = 20
	}
	return &SampleStore{bound: bound, window: models.SampleWindow{}}
}

// Replace 用最新一次拉取的结果替换窗口，超出上限时保留最近的 bound 条
func (s *SampleStore) Replace(samples []models.SensorSample) models.SampleWindow {
	w := models.NewSampleWindow(samples, s.bound)

	s.mu.Lock()
	s.window = w
	s.mu.Unlock()

	return w.Clone()
}

// Window 当前窗口的拷贝
func (s *SampleStore) Window() models.SampleWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window.Clone()
}

func (s *SampleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.window)
}

func (s *SampleStore) Bound() int { return s.bound }
