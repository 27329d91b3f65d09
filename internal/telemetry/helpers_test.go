package telemetry

import (
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
)

// sequenceSource 按顺序返回预设值，用完后循环
type sequenceSource struct {
	values []float64
	i      int
}

func (s *sequenceSource) Float64() float64 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.i%len(s.values)]
	s.i++
	return v
}

// constSource 始终返回同一个值
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func sampleAt(createdAt time.Time, pir, temp, threat, eclass string) models.SensorSample {
	return models.SensorSample{
		CreatedAt: createdAt,
		Field1:    pir,
		Field2:    temp,
		Field6:    threat,
		Field8:    eclass,
	}
}
