package telemetry

import (
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
)

// DefaultFallRate 有运动时判为 Fall 的默认概率
const DefaultFallRate = 0.05

// DefaultDistribution 首次成功轮询前展示的分布
func DefaultDistribution() models.Distribution {
	return models.Distribution{
		models.CategoryNormal:    75,
		models.CategoryStillness: 15,
		models.CategoryThermal:   5,
		models.CategoryFall:      5,
	}
}

// Categorize 单条样本归类（首个命中的规则生效）
//  1. 温度 > 35 -> Thermal
//  2. PIR == 0 -> Stillness
//  3. 有运动：随机数 > 1-fallRate -> Fall，否则 Normal
func Categorize(sample models.SensorSample, fallRate float64, rng RandomSource) models.EventCategory {
	if sample.Temperature() > 35 {
		return models.CategoryThermal
	}
	if sample.PIRDuty() == 0 {
		return models.CategoryStillness
	}
	if fallRate > 0 && draw(rng) > 1-fallRate {
		return models.CategoryFall
	}
	return models.CategoryNormal
}

// AggregateDistribution 统计窗口内各类别百分比（每个类别独立四舍五入）
// 空窗口原样返回 previous 的拷贝，不输出全零分布
func AggregateDistribution(window models.SampleWindow, previous models.Distribution, fallRate float64, rng RandomSource) models.Distribution {
	total := len(window)
	if total == 0 {
		return previous.Clone()
	}

	counts := make(map[models.EventCategory]int, len(models.Categories))
	for _, sample := range window {
		counts[Categorize(sample, fallRate, rng)]++
	}

	dist := make(models.Distribution, len(models.Categories))
	for _, c := range models.Categories {
		dist[c] = percentHalfUp(counts[c], total)
	}
	return dist
}

// percentHalfUp floor(count/total*100 + 0.5)，整数运算避免 .5 被浮点误差舍掉
func percentHalfUp(count, total int) int {
	return (200*count + total) / (2 * total)
}
