package excel

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/errbook/internal/knowledge"
	"github.com/example/errbook/pkg/models"
	"github.com/xuri/excelize/v2"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath string    // Path to the Excel or CSV file
	Reader   io.Reader // Read instead of FilePath when set
	Format   string    // FormatXLSX or FormatCSV; taken from the FilePath extension when empty

	CategoryColumn       string
	SubtypeColumn        string
	KeyPointColumn       string
	ExplanationColumn    string
	OriginalPhraseColumn string
	CorrectionColumn     string
	SentenceColumn       string
	AnswerColumn         string

	SheetName string // Sheet to import, the first one when empty
	StartRow  int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the column layout written by ExportPoints
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		CategoryColumn:       "A",
		SubtypeColumn:        "B",
		KeyPointColumn:       "C",
		ExplanationColumn:    "D",
		OriginalPhraseColumn: "E",
		CorrectionColumn:     "F",
		SentenceColumn:       "G",
		AnswerColumn:         "H",
		StartRow:             2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Merged         int
	QuotaRejected  int
	Skipped        int
	Errors         []string
}

// Importer commits already-confirmed mistakes through the knowledge pipeline
type Importer interface {
	Import(ctx context.Context, items []knowledge.ImportItem) *knowledge.CommitResult
}

// ImportPoints reads knowledge points from an Excel or CSV file and commits
// them. Rows are validated like grader output, duplicates merge and the
// daily limit applies.
func ImportPoints(ctx context.Context, imp Importer, config ImportConfig) (*ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	var (
		items   []knowledge.ImportItem
		rowNums []int
	)
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow {
			continue
		}
		if isBlank(row) {
			continue
		}
		result.TotalProcessed++
		items = append(items, rowToItem(row, config))
		rowNums = append(rowNums, rowNum)
	}
	if len(items) == 0 {
		return result, nil
	}

	commit := imp.Import(ctx, items)
	for _, o := range commit.Outcomes {
		rowNum := rowNums[o.CandidateID-1]
		switch o.Status {
		case knowledge.StatusCommitted:
			result.Created++
		case knowledge.StatusMerged:
			result.Merged++
		case knowledge.StatusQuotaRejected:
			result.QuotaRejected++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: daily limit reached", rowNum))
		default:
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNum, o.Reason))
		}
	}
	return result, nil
}

func readRows(config ImportConfig) ([][]string, error) {
	format := config.Format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(config.FilePath)), ".")
	}

	r := config.Reader
	if r == nil {
		if config.FilePath == "" {
			return nil, errors.New("no file to import")
		}
		file, err := os.Open(config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open import file: %w", err)
		}
		defer file.Close()
		r = file
	}

	switch format {
	case FormatCSV:
		return readCSV(r)
	case FormatXLSX:
		return readExcel(r, config.SheetName)
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
}

func readExcel(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	// Excel writes a BOM in front of UTF-8 CSV
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return rows, nil
}

func rowToItem(row []string, config ImportConfig) knowledge.ImportItem {
	cell := func(column string) string {
		if column == "" {
			return ""
		}
		if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}
	return knowledge.ImportItem{
		Analysis: models.ErrorAnalysis{
			Category:       cell(config.CategoryColumn),
			Subtype:        cell(config.SubtypeColumn),
			KeyPoint:       cell(config.KeyPointColumn),
			Explanation:    cell(config.ExplanationColumn),
			OriginalPhrase: cell(config.OriginalPhraseColumn),
			Correction:     cell(config.CorrectionColumn),
		},
		SourceSentence: cell(config.SentenceColumn),
		LearnerAnswer:  cell(config.AnswerColumn),
	}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// columnToIndex converts an Excel column letter to a 0-based index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
