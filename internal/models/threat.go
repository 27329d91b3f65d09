package models

// ThreatState 节点 UI 严重程度（决定楼层网格配色）
type ThreatState string

const (
	ThreatHealthy   ThreatState = "healthy"
	ThreatWatch     ThreatState = "watch"
	ThreatAlert     ThreatState = "alert"
	ThreatEmergency ThreatState = "emergency"
	ThreatInactive  ThreatState = "inactive"
)

// Severity 用于比较状态的严重程度，inactive 视为 -1
func (s ThreatState) Severity() int {
	switch s {
	case ThreatWatch:
		return 1
	case ThreatAlert:
		return 2
	case ThreatEmergency:
		return 3
	case ThreatInactive:
		return -1
	default:
		return 0
	}
}

// EventLabel 事件标签（封闭集合）
type EventLabel string

const (
	LabelAllClear          EventLabel = "AllClear"
	LabelProbableFall      EventLabel = "ProbableFall"
	LabelPostFallFloor     EventLabel = "PostFallFloor"
	LabelAbnormalStillness EventLabel = "AbnormalStillness"
	LabelThermalAnomaly    EventLabel = "ThermalAnomaly"
	LabelOccupancyAnomaly  EventLabel = "OccupancyAnomaly"
	LabelSensorFault       EventLabel = "SensorFault"
	LabelElevatedThreat    EventLabel = "ElevatedThreat"
	LabelHardwareOffline   EventLabel = "HardwareOffline"
)

var labelDisplay = map[EventLabel]string{
	LabelAllClear:          "All Clear",
	LabelProbableFall:      "Probable Fall",
	LabelPostFallFloor:     "Post-Fall / Floor",
	LabelAbnormalStillness: "Abnormal Stillness",
	LabelThermalAnomaly:    "Thermal Anomaly (Fire)",
	LabelOccupancyAnomaly:  "Occupancy Anomaly",
	LabelSensorFault:       "Sensor Fault",
	LabelElevatedThreat:    "Elevated Threat",
	LabelHardwareOffline:   "Hardware Offline",
}

// Display 返回前端展示文本
func (l EventLabel) Display() string {
	if d, ok := labelDisplay[l]; ok {
		return d
	}
	return string(l)
}

// Assessment 一次分类结果：标签来自紧急类别，严重程度来自威胁等级，两者独立
type Assessment struct {
	State          ThreatState `json:"state"`
	Label          EventLabel  `json:"label"`
	LabelDisplay   string      `json:"label_display"`
	ThreatLevel    int         `json:"threat_level"`
	EmergencyClass int         `json:"emergency_class"`
}

// Severity 评估的严重程度
func (a Assessment) Severity() int { return a.State.Severity() }
