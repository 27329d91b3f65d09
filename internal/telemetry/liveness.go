package telemetry

import (
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
)

// LivenessVerdict 上游数据源是否在线
type LivenessVerdict struct {
	Live bool          `json:"live"`
	Age  time.Duration `json:"-"`
}

// EvaluateLiveness 根据最新样本时间判断是否在线
// 空窗口一律离线；否则 now - latest.CreatedAt < threshold 为在线（上界不含）
func EvaluateLiveness(window models.SampleWindow, now time.Time, threshold time.Duration) LivenessVerdict {
	latest, ok := window.Latest()
	if !ok {
		return LivenessVerdict{Live: false}
	}
	age := now.Sub(latest.CreatedAt)
	return LivenessVerdict{
		Live: age < threshold,
		Age:  age,
	}
}
