package excel

import (
	"fmt"
	"time"

	"github.com/example/errbook/pkg/models"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Knowledge points"

var exportHeader = []string{
	"category", "subtype", "key_point", "explanation", "original_phrase", "correction",
	"sentence", "answer",
	"mastery", "mistakes", "correct", "last_seen", "next_review", "external_id",
}

// ExportPoints writes points to an xlsx workbook. The first eight columns
// use the DefaultImportConfig layout, so an export can be imported again.
func ExportPoints(points []models.KnowledgePoint) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	last, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(exportSheet, "A1", last+"1", bold); err != nil {
		return nil, err
	}

	for i, kp := range points {
		row := []interface{}{
			string(kp.Category), kp.Subtype, kp.KeyPoint, kp.Explanation, kp.OriginalPhrase, kp.Correction,
			"", "",
			kp.MasteryLevel, kp.MistakeCount, kp.CorrectCount,
			kp.LastSeen.Format(time.RFC3339), formatOptional(kp.NextReview), kp.ExternalID,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(exportSheet, "C", "F", 28); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
