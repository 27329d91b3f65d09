package telemetry

import (
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
)

// emergencyLabels 紧急类别 -> 事件标签（固定表）
var emergencyLabels = map[int]models.EventLabel{
	1: models.LabelProbableFall,
	2: models.LabelPostFallFloor,
	3: models.LabelAbnormalStillness,
	4: models.LabelThermalAnomaly,
	5: models.LabelOccupancyAnomaly,
	6: models.LabelSensorFault,
}

// ClassifyLabel 由紧急类别（field8）决定事件标签
// 优先级：离线 > 紧急类别表 > 威胁等级默认分支
func ClassifyLabel(window models.SampleWindow, liveness LivenessVerdict) models.EventLabel {
	latest, ok := window.Latest()
	if !liveness.Live || !ok {
		return models.LabelHardwareOffline
	}
	if label, ok := emergencyLabels[latest.EmergencyClass()]; ok {
		return label
	}
	if latest.ThreatLevel() > 0 {
		return models.LabelElevatedThreat
	}
	return models.LabelAllClear
}

// ClassifySeverity 由威胁等级（field6）决定 UI 严重程度，与标签无关
func ClassifySeverity(window models.SampleWindow, liveness LivenessVerdict) models.ThreatState {
	latest, ok := window.Latest()
	if !liveness.Live || !ok {
		return models.ThreatInactive
	}
	switch latest.ThreatLevel() {
	case 1:
		return models.ThreatWatch
	case 2:
		return models.ThreatAlert
	case 3:
		return models.ThreatEmergency
	default:
		return models.ThreatHealthy
	}
}

// Classify 组合标签与严重程度
func Classify(window models.SampleWindow, liveness LivenessVerdict) models.Assessment {
	label := ClassifyLabel(window, liveness)
	a := models.Assessment{
		State:        ClassifySeverity(window, liveness),
		Label:        label,
		LabelDisplay: label.Display(),
	}
	if latest, ok := window.Latest(); ok {
		a.ThreatLevel = latest.ThreatLevel()
		a.EmergencyClass = latest.EmergencyClass()
	}
	return a
}
