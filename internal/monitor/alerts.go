package monitor

import (
	"encoding/json"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/google/uuid"
)

// DetectTransition 比较前后两次评估，需要报警时返回事件
//   - 进入非 healthy 状态，或非 healthy 状态下标签变化，产生事件
//   - 恢复到 healthy 不产生事件
//   - 视图初始快照为 inactive/HardwareOffline，启动时的离线与初始状态相同，不报警
func DetectTransition(prev, cur Snapshot, now time.Time) (*models.AlertEvent, bool) {
	p, c := prev.Assessment, cur.Assessment
	if c.State == models.ThreatHealthy || c.State == "" {
		return nil, false
	}
	if p.State == c.State && p.Label == c.Label {
		return nil, false
	}
	return NewAlertEvent(prev, cur, now), true
}

// NewAlertEvent 由快照构造报警事件
func NewAlertEvent(prev, cur Snapshot, now time.Time) *models.AlertEvent {
	a := cur.Assessment
	ev := &models.AlertEvent{
		EventID:        uuid.New().String(),
		NodeID:         cur.NodeID,
		View:           cur.View,
		State:          a.State,
		PreviousState:  prev.Assessment.State,
		Label:          a.Label,
		LabelDisplay:   a.LabelDisplay,
		ThreatLevel:    a.ThreatLevel,
		EmergencyClass: a.EmergencyClass,
		TriggeredAt:    now,
	}

	trigger := models.TriggerData{Source: "ThingSpeak"}
	if cur.Latest != nil {
		s := cur.Latest
		entryID := s.EntryID
		sampleTime := s.CreatedAt
		ev.SampleEntryID = &entryID
		trigger.PIRDuty = s.PIRDuty()
		trigger.Temperature = s.Temperature()
		trigger.Humidity = s.Humidity()
		trigger.Distance = s.Distance()
		trigger.AnomalyScore = s.AnomalyScore()
		trigger.MotionEnergy = s.MotionEnergy()
		trigger.SampleTime = &sampleTime
	}
	if b, err := json.Marshal(trigger); err == nil {
		ev.TriggerData = string(b)
	}
	return ev
}
