package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// SensorSample ThingSpeak 通道的一条原始遥测记录
// 字段均以文本编码：
//   - field1: PIR 运动占空比 %
//   - field2: 温度 °C
//   - field3: 湿度 %
//   - field4: 距离 cm
//   - field5: 原始异常分数（0-1）
//   - field6: 威胁等级（0-3）
//   - field7: 运动能量
//   - field8: 紧急类别（0-6）
type SensorSample struct {
	CreatedAt time.Time `json:"created_at"`
	EntryID   int64     `json:"entry_id"`
	Field1    string    `json:"field1"`
	Field2    string    `json:"field2"`
	Field3    string    `json:"field3"`
	Field4    string    `json:"field4"`
	Field5    string    `json:"field5"`
	Field6    string    `json:"field6"`
	Field7    string    `json:"field7"`
	Field8    string    `json:"field8"`
}

// ParseField 解析文本数值字段；缺失、非数字、NaN、Inf 一律返回 0
func ParseField(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseOrdinal 解析序数字段（四舍五入到整数）
func ParseOrdinal(s string) int {
	return int(math.Round(ParseField(s)))
}

func (s SensorSample) PIRDuty() float64      { return ParseField(s.Field1) }
func (s SensorSample) Temperature() float64  { return ParseField(s.Field2) }
func (s SensorSample) Humidity() float64     { return ParseField(s.Field3) }
func (s SensorSample) Distance() float64     { return ParseField(s.Field4) }
func (s SensorSample) AnomalyScore() float64 { return ParseField(s.Field5) }
func (s SensorSample) MotionEnergy() float64 { return ParseField(s.Field7) }

// ThreatLevel 威胁等级 round(field6)，不做范围校验
func (s SensorSample) ThreatLevel() int { return ParseOrdinal(s.Field6) }

// EmergencyClass 紧急类别 round(field8)，不做范围校验
func (s SensorSample) EmergencyClass() int { return ParseOrdinal(s.Field8) }

// SampleWindow 最近 N 条样本，按插入顺序排列（index 0 最旧）
// created_at 不用于排序或间隔计算
type SampleWindow []SensorSample

// NewSampleWindow 按插入顺序截取最近 bound 条样本（bound <= 0 表示不限制）
// 返回的是拷贝，调用方后续修改 samples 不影响窗口
func NewSampleWindow(samples []SensorSample, bound int) SampleWindow {
	start := 0
	if bound > 0 && len(samples) > bound {
		start = len(samples) - bound
	}
	w := make(SampleWindow, len(samples)-start)
	copy(w, samples[start:])
	return w
}

// Latest 返回窗口中最新的一条样本
func (w SampleWindow) Latest() (SensorSample, bool) {
	if len(w) == 0 {
		return SensorSample{}, false
	}
	return w[len(w)-1], true
}

// Clone 深拷贝窗口
func (w SampleWindow) Clone() SampleWindow {
	if w == nil {
		return nil
	}
	out := make(SampleWindow, len(w))
	copy(out, w)
	return out
}
