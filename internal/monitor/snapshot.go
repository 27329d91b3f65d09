package monitor

import (
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/telemetry"
)

// Snapshot 一次轮询后的派生结果（只读拷贝）
type Snapshot struct {
	View         string                    `json:"view"`
	NodeID       string                    `json:"node_id"`
	Seq          uint64                    `json:"seq"`
	GeneratedAt  time.Time                 `json:"generated_at"`
	SampleCount  int                       `json:"sample_count"`
	Liveness     telemetry.LivenessVerdict `json:"liveness"`
	AgeSeconds   *float64                  `json:"age_seconds,omitempty"`
	Assessment   models.Assessment         `json:"assessment"`
	Series       []models.SeriesPoint      `json:"series"`
	Distribution models.Distribution       `json:"distribution"`
	Latest       *models.SensorSample      `json:"latest,omitempty"`
	FetchError   string                    `json:"fetch_error,omitempty"`

	// Window 当前样本窗口，仅供内部（sensor_feed、历史入库）使用
	Window models.SampleWindow `json:"-"`
}

// Clone 深拷贝
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Series != nil {
		out.Series = append([]models.SeriesPoint(nil), s.Series...)
	}
	out.Distribution = s.Distribution.Clone()
	out.Window = s.Window.Clone()
	if s.Latest != nil {
		latest := *s.Latest
		out.Latest = &latest
	}
	if s.AgeSeconds != nil {
		age := *s.AgeSeconds
		out.AgeSeconds = &age
	}
	return out
}

// NodeStatus 楼层网格上的节点状态
type NodeStatus struct {
	ID     string             `json:"id"`
	Status models.ThreatState `json:"status"`
	Event  string             `json:"event"`
	Live   bool               `json:"live"`
}

// NodeStatus 从快照得到节点状态
func (s Snapshot) NodeStatus() NodeStatus {
	return NodeStatus{
		ID:     s.NodeID,
		Status: s.Assessment.State,
		Event:  s.Assessment.LabelDisplay,
		Live:   s.Liveness.Live,
	}
}
