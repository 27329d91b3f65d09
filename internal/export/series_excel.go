package export

import (
	"bytes"
	"fmt"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/xuri/excelize/v2"
)

// SeriesExportHeader 序列导出表头
var SeriesExportHeader = []string{
	"Time",
	"Timestamp",
	"Baseline_Movement",
	"Live_Deviation",
	"Energy_Level",
	"PIR_Duty",
	"Humidity",
	"Anomaly_Score",
}

const (
	seriesSheet       = "Series"
	distributionSheet = "Distribution"
)

// GenerateSeriesWorkbook 生成序列 + 分布的 Excel 文件
func GenerateSeriesWorkbook(series []models.SeriesPoint, dist models.Distribution) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 需要文件保持打开，不能 defer Close

	if _, err := f.NewSheet(seriesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1 后索引会变化，重新取
	f.DeleteSheet("Sheet1")
	if index, err := f.GetSheetIndex(seriesSheet); err == nil {
		f.SetActiveSheet(index)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, seriesSheet, SeriesExportHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetColWidth(seriesSheet, "A", "A", 12); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(seriesSheet, "B", "B", 22); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(seriesSheet, "C", "H", 18); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, p := range series {
		row := []interface{}{
			p.TimeLabel,
			p.Timestamp.Format("2006-01-02 15:04:05"),
			round2(p.Baseline),
			round2(p.Deviation),
			round2(p.Energy),
			p.PIRDuty,
			p.Humidity,
			round2(p.AnomalyScore),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(seriesSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(seriesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	// 分布
	if _, err := f.NewSheet(distributionSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, distributionSheet, []string{"Category", "Percent"}, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	for i, c := range models.Categories {
		row := []interface{}{string(c), dist[c]}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(distributionSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write distribution row: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}
