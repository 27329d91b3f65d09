package telemetry

import (
	"math"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
)

// SeriesOptions 合成时间线参数（每个视图独立配置）
type SeriesOptions struct {
	Step        time.Duration  // 相邻点间隔，如 15s（滚动图表）或 60s（24 点分析视图）
	LabelLayout string         // 时间标签格式，如 "15:04:05"
	Location    *time.Location // nil 时使用 now 自身的时区
}

// SynthesizeSeries 丢弃样本原始时间戳，以 now 为终点重建等间隔时间线
// 第 i 个点（共 n 个）的时间 = now - (n-1-i)*Step
// 每个点固定消耗两次随机数：先 energy，后 deviation
func SynthesizeSeries(window models.SampleWindow, now time.Time, opts SeriesOptions, rng RandomSource) []models.SeriesPoint {
	n := len(window)
	points := make([]models.SeriesPoint, 0, n)
	if opts.Location != nil {
		now = now.In(opts.Location)
	}

	for i, sample := range window {
		ts := now.Add(-time.Duration(n-1-i) * opts.Step)

		pir := sample.PIRDuty()
		temp := sample.Temperature()

		p := models.SeriesPoint{
			Timestamp:    ts,
			TimeLabel:    formatLabel(ts, opts.LabelLayout),
			PIRDuty:      pir,
			Humidity:     sample.Humidity(),
			AnomalyScore: sample.AnomalyScore() * 100,
			Baseline:     baselineAt(ts),
		}
		p.Energy = syntheticEnergy(pir, temp, draw(rng))
		p.Deviation = syntheticDeviation(pir, temp, draw(rng))

		points = append(points, p)
	}
	return points
}

func formatLabel(ts time.Time, layout string) string {
	if layout == "" {
		layout = "15:04:05"
	}
	return ts.Format(layout)
}

// syntheticEnergy 运动能量：pir*[40,60) + 温度加成（>30°C 加 20）
func syntheticEnergy(pir, temp, r float64) float64 {
	energy := pir * (40 + r*20)
	if temp > 30 {
		energy += 20
	}
	return energy
}

// baselineAt 基线：20 ± 5 的分钟级正弦波
func baselineAt(ts time.Time) float64 {
	return 20 + math.Sin(float64(ts.Minute())/5)*5
}

// syntheticDeviation 偏离分数：高温 [80,95)，pir==1 时 [15,25)，其余 [5,10)
func syntheticDeviation(pir, temp, r float64) float64 {
	switch {
	case temp > 32:
		return 80 + r*15
	case pir == 1:
		return 15 + r*10
	default:
		return 5 + r*5
	}
}
