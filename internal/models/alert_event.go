package models

import "time"

// AlertEvent 节点状态变化产生的报警事件（对应 alert_events 表 / codeblue:alerts 流）
type AlertEvent struct {
	EventID        string      `json:"event_id" db:"event_id"`
	NodeID         string      `json:"node_id" db:"node_id"`
	View           string      `json:"view" db:"view"`
	State          ThreatState `json:"state" db:"state"`
	PreviousState  ThreatState `json:"previous_state" db:"previous_state"`
	Label          EventLabel  `json:"label" db:"label"`
	LabelDisplay   string      `json:"label_display" db:"label_display"`
	ThreatLevel    int         `json:"threat_level" db:"threat_level"`
	EmergencyClass int         `json:"emergency_class" db:"emergency_class"`
	SampleEntryID  *int64      `json:"sample_entry_id,omitempty" db:"sample_entry_id"`
	TriggeredAt    time.Time   `json:"triggered_at" db:"triggered_at"`
	TriggerData    string      `json:"trigger_data" db:"trigger_data"` // JSONB
}

// TriggerData 触发时的样本快照（JSONB 结构）
type TriggerData struct {
	PIRDuty      float64    `json:"pir_duty"`
	Temperature  float64    `json:"temperature"`
	Humidity     float64    `json:"humidity"`
	Distance     float64    `json:"distance"`
	AnomalyScore float64    `json:"anomaly_score"`
	MotionEnergy float64    `json:"motion_energy"`
	SampleTime   *time.Time `json:"sample_time,omitempty"`
	Source       string     `json:"source"` // "ThingSpeak"
}
