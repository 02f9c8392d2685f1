package knowledge

import (
	"testing"

	"github.com/example/errbook/pkg/models"
)

func TestBuildCandidates(t *testing.T) {
	result := &models.GradingResult{
		ErrorAnalyses: []models.ErrorAnalysis{
			{Category: " Isolated ", Subtype: "collocation", Explanation: "make, not do",
				OriginalPhrase: "do  a\tdecision", Correction: " make a decision "},
			{Category: "grammar", Subtype: "tense", OriginalPhrase: "a", Correction: "b"},
			{Category: "systematic", Subtype: "", OriginalPhrase: "a", Correction: "b"},
			{Category: "systematic", Subtype: "articles", KeyPoint: "a before consonant",
				OriginalPhrase: "an car", Correction: "a car"},
			{Category: "enhancement", Subtype: "style", OriginalPhrase: "", Correction: "b"},
		},
	}

	built := CandidateBuilder{}.Build(result, " I did a decision ", "answer")

	if len(built.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(built.Candidates), built.Candidates)
	}
	if len(built.Rejected) != 3 {
		t.Fatalf("got %d rejected, want 3: %+v", len(built.Rejected), built.Rejected)
	}

	first := built.Candidates[0]
	if first.ID != 1 || built.Candidates[1].ID != 2 {
		t.Errorf("candidate IDs = %d, %d", first.ID, built.Candidates[1].ID)
	}
	if first.Category != models.CategoryIsolated {
		t.Errorf("category = %q", first.Category)
	}
	if first.OriginalPhrase != "do a decision" || first.Correction != "make a decision" {
		t.Errorf("whitespace not normalized: %q / %q", first.OriginalPhrase, first.Correction)
	}
	if first.KeyPoint != "collocation" {
		t.Errorf("key point = %q, want derived from subtype", first.KeyPoint)
	}
	if first.SourceSentence != "I did a decision" {
		t.Errorf("source sentence = %q", first.SourceSentence)
	}
	if built.Candidates[1].KeyPoint != "a before consonant" {
		t.Errorf("explicit key point lost: %q", built.Candidates[1].KeyPoint)
	}

	fields := map[string]bool{}
	for _, r := range built.Rejected {
		fields[r.Field] = true
	}
	for _, f := range []string{"category", "subtype", "original_phrase"} {
		if !fields[f] {
			t.Errorf("no rejection for %s: %+v", f, built.Rejected)
		}
	}
}

func TestBuildNilResult(t *testing.T) {
	built := CandidateBuilder{}.Build(nil, "s", "a")
	if len(built.Candidates) != 0 || len(built.Rejected) != 0 {
		t.Errorf("built = %+v", built)
	}
}

func TestNormalizeKeepsCase(t *testing.T) {
	if got := normalize("  Make   A decision "); got != "Make A decision" {
		t.Errorf("normalize = %q", got)
	}
}
