package models

import "time"

// SeriesPoint 图表用的合成时间序列点
// Timestamp/TimeLabel 是重建的等间隔时间，不是样本原始 created_at
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	TimeLabel string    `json:"time"`

	// 合成信号（分析视图）
	Baseline  float64 `json:"baseline"`
	Deviation float64 `json:"deviation"`
	Energy    float64 `json:"energy"`

	// 原始字段简单变换（实时图表）
	PIRDuty      float64 `json:"pir_duty"`
	Humidity     float64 `json:"humidity"`
	AnomalyScore float64 `json:"anomaly_score"`
}

// EventCategory 分布统计类别
type EventCategory string

const (
	CategoryNormal    EventCategory = "Normal"
	CategoryStillness EventCategory = "Stillness"
	CategoryThermal   EventCategory = "Thermal"
	CategoryFall      EventCategory = "Fall"
)

// Categories 固定展示顺序
var Categories = []EventCategory{CategoryNormal, CategoryStillness, CategoryThermal, CategoryFall}

// Distribution 类别 -> 整数百分比
type Distribution map[EventCategory]int

// Clone 拷贝分布（nil 返回 nil）
func (d Distribution) Clone() Distribution {
	if d == nil {
		return nil
	}
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Total 百分比合计（各类别独立取整，合计不一定等于 100）
func (d Distribution) Total() int {
	total := 0
	for _, v := range d {
		total += v
	}
	return total
}
