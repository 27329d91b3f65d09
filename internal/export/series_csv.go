package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
)

// SeriesCSVHeader 与分析页 "Export CSV" 一致的列
var SeriesCSVHeader = []string{"Time", "Baseline_Movement", "Live_Deviation", "Energy_Level"}

// GenerateSeriesCSV 序列导出为 CSV（数值保留两位小数）
func GenerateSeriesCSV(series []models.SeriesPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(SeriesCSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range series {
		record := []string{
			p.TimeLabel,
			strconv.FormatFloat(p.Baseline, 'f', 2, 64),
			strconv.FormatFloat(p.Deviation, 'f', 2, 64),
			strconv.FormatFloat(p.Energy, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName 下载文件名，如 codebluehalo_analysis_2026-03-14.csv
func FileName(view string, at time.Time, ext string) string {
	return fmt.Sprintf("codebluehalo_%s_%s.%s", view, at.Format("2006-01-02"), ext)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
