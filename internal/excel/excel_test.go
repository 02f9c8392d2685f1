package excel

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/errbook/internal/knowledge"
	"github.com/example/errbook/pkg/models"
)

// fakeImporter mimics the commit pipeline: unknown categories are invalid,
// repeated phrases merge and the third isolated point hits the limit
type fakeImporter struct {
	items []knowledge.ImportItem
}

func (f *fakeImporter) Import(ctx context.Context, items []knowledge.ImportItem) *knowledge.CommitResult {
	f.items = items
	result := &knowledge.CommitResult{}
	seen := map[string]bool{}
	isolated := 0
	for i, item := range items {
		o := knowledge.CandidateOutcome{CandidateID: i + 1}
		a := item.Analysis
		switch {
		case !models.Category(a.Category).Valid():
			o.Status, o.Reason = knowledge.StatusInvalid, "unknown category"
		case seen[a.OriginalPhrase]:
			o.Status = knowledge.StatusMerged
		case a.Category == "isolated" && isolated == 2:
			o.Status = knowledge.StatusQuotaRejected
		default:
			if a.Category == "isolated" {
				isolated++
			}
			seen[a.OriginalPhrase] = true
			o.Status = knowledge.StatusCommitted
		}
		result.Outcomes = append(result.Outcomes, o)
	}
	return result
}

func TestImportCSV(t *testing.T) {
	csvData := "\xef\xbb\xbfcategory,subtype,key_point,explanation,original_phrase,correction,sentence,answer\n" +
		"systematic,tense,past simple,,I go yesterday,I went yesterday,Я пошёл вчера,I go yesterday\n" +
		",,,,,,,\n" +
		"grammar,x,,,a,b,,\n" +
		"isolated,collocation,,,do a decision,make a decision,,\n" +
		"isolated,collocation,,,do a decision,make a decision,,\n" +
		"isolated,spelling,,,recieve,receive,,\n" +
		"isolated,spelling,,,teh,the,,\n"

	path := filepath.Join(t.TempDir(), "points.csv")
	if err := os.WriteFile(path, []byte(csvData), 0o644); err != nil {
		t.Fatal(err)
	}

	imp := &fakeImporter{}
	config := DefaultImportConfig()
	config.FilePath = path
	result, err := ImportPoints(context.Background(), imp, config)
	if err != nil {
		t.Fatalf("ImportPoints: %v", err)
	}

	if result.TotalProcessed != 6 || result.Created != 3 || result.Merged != 1 ||
		result.QuotaRejected != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(result.Errors) != 2 || !strings.HasPrefix(result.Errors[0], "Row 4:") || !strings.HasPrefix(result.Errors[1], "Row 8:") {
		t.Errorf("errors = %q", result.Errors)
	}

	first := imp.items[0]
	if first.Analysis.KeyPoint != "past simple" || first.SourceSentence != "Я пошёл вчера" || first.LearnerAnswer != "I go yesterday" {
		t.Errorf("first item = %+v", first)
	}
}

func TestImportUnsupportedFormat(t *testing.T) {
	config := DefaultImportConfig()
	config.FilePath = "points.txt"
	config.Reader = strings.NewReader("")
	if _, err := ImportPoints(context.Background(), &fakeImporter{}, config); err == nil {
		t.Error("expected an error for .txt")
	}
}

func TestExportThenImport(t *testing.T) {
	next := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	points := []models.KnowledgePoint{
		{
			ExternalID: "ext-1", Category: models.CategorySystematic, Subtype: "tense", KeyPoint: "past simple",
			OriginalPhrase: "I go yesterday", Correction: "I went yesterday", MasteryLevel: 0.1,
			MistakeCount: 1, LastSeen: next.Add(-24 * time.Hour), NextReview: &next,
		},
		{
			ExternalID: "ext-2", Category: models.CategoryIsolated, Subtype: "spelling", KeyPoint: "spelling",
			OriginalPhrase: "recieve", Correction: "receive", MasteryLevel: 0.2,
		},
	}

	data, err := ExportPoints(points)
	if err != nil {
		t.Fatalf("ExportPoints: %v", err)
	}

	imp := &fakeImporter{}
	config := DefaultImportConfig()
	config.Reader = bytes.NewReader(data)
	config.Format = FormatXLSX
	result, err := ImportPoints(context.Background(), imp, config)
	if err != nil {
		t.Fatalf("ImportPoints: %v", err)
	}
	if result.Created != 2 || len(imp.items) != 2 {
		t.Fatalf("result = %+v", result)
	}
	got := imp.items[0].Analysis
	if got.Category != "systematic" || got.KeyPoint != "past simple" || got.Correction != "I went yesterday" {
		t.Errorf("first row = %+v", got)
	}
}

func TestColumnToIndex(t *testing.T) {
	for column, want := range map[string]int{"A": 0, "h": 7, "Z": 25, "AA": 26} {
		if got := columnToIndex(column); got != want {
			t.Errorf("columnToIndex(%q) = %d, want %d", column, got, want)
		}
	}
}
