package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"coursechat-backend/internal/stats"

	"github.com/xuri/excelize/v2"
)

// ExportService renders the rag-stats aggregates as a spreadsheet for
// offline review.
type ExportService struct {
	stats stats.Store
}

func NewExportService(statsStore stats.Store) *ExportService {
	return &ExportService{stats: statsStore}
}

// ExportStatsXLSX builds an xlsx workbook with an overview sheet and a
// per-section sheet, and returns it as a byte buffer ready to stream.
func (es *ExportService) ExportStatsXLSX(ctx context.Context, userID string) (*bytes.Buffer, string, error) {
	overview, err := es.stats.Overview(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("load overview: %w", err)
	}
	sections, err := es.stats.TopSections(ctx, 50)
	if err != nil {
		return nil, "", fmt.Errorf("load sections: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const overviewSheet = "Overview"
	index, err := f.NewSheet(overviewSheet)
	if err != nil {
		return nil, "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	f.SetCellValue(overviewSheet, "A1", "Metric")
	f.SetCellValue(overviewSheet, "B1", "Value")
	f.SetCellValue(overviewSheet, "A2", "Total Questions")
	f.SetCellValue(overviewSheet, "B2", overview.TotalQuestions)
	f.SetCellValue(overviewSheet, "A3", "Avg Response Time (s)")
	f.SetCellValue(overviewSheet, "B3", overview.AvgResponseTime)
	f.SetCellValue(overviewSheet, "A4", "Last Activity")
	if overview.LastActivity != nil {
		f.SetCellValue(overviewSheet, "B4", overview.LastActivity.Format("2006-01-02 15:04:05"))
	} else {
		f.SetCellValue(overviewSheet, "B4", "never")
	}

	const sectionSheet = "Sections"
	if _, err := f.NewSheet(sectionSheet); err != nil {
		return nil, "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetCellValue(sectionSheet, "A1", "Section")
	f.SetCellValue(sectionSheet, "B1", "Course")
	f.SetCellValue(sectionSheet, "C1", "Questions")
	for i, s := range sections {
		row := i + 2
		f.SetCellValue(sectionSheet, fmt.Sprintf("A%d", row), s.Section)
		f.SetCellValue(sectionSheet, fmt.Sprintf("B%d", row), s.CourseID)
		f.SetCellValue(sectionSheet, fmt.Sprintf("C%d", row), s.QuestionCount)
	}
	_ = f.SetColWidth(sectionSheet, "A", "B", 28)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	filename := fmt.Sprintf("rag-stats-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	return &buf, filename, nil
}
