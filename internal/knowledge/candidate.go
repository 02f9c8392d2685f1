package knowledge

import (
	"strings"

	"github.com/example/errbook/pkg/models"
)

// CandidateBuilder turns grader output into pending candidates
type CandidateBuilder struct{}

// BuildResult holds the candidates built from one grading result and the
// analyses that were dropped
type BuildResult struct {
	Candidates []models.PendingCandidate
	Rejected   []ValidationError
}

// Build returns one candidate per well-formed analysis. Malformed analyses
// are reported in Rejected and never fail the batch.
func (b CandidateBuilder) Build(result *models.GradingResult, sourceSentence, learnerAnswer string) BuildResult {
	var out BuildResult
	if result == nil {
		return out
	}
	for _, a := range result.ErrorAnalyses {
		c, verr := b.FromAnalysis(a, sourceSentence, learnerAnswer)
		if verr != nil {
			out.Rejected = append(out.Rejected, *verr)
			continue
		}
		c.ID = len(out.Candidates) + 1
		out.Candidates = append(out.Candidates, c)
	}
	return out
}

// FromAnalysis validates and normalizes a single analysis
func (b CandidateBuilder) FromAnalysis(a models.ErrorAnalysis, sourceSentence, learnerAnswer string) (models.PendingCandidate, *ValidationError) {
	category, err := models.ParseCategory(a.Category)
	if err != nil {
		return models.PendingCandidate{}, &ValidationError{Field: "category", Reason: err.Error()}
	}

	c := models.PendingCandidate{
		Category:       category,
		Subtype:        normalize(a.Subtype),
		KeyPoint:       normalize(a.KeyPoint),
		Explanation:    strings.TrimSpace(a.Explanation),
		OriginalPhrase: normalize(a.OriginalPhrase),
		Correction:     normalize(a.Correction),
		SourceSentence: strings.TrimSpace(sourceSentence),
		LearnerAnswer:  strings.TrimSpace(learnerAnswer),
	}
	if c.KeyPoint == "" {
		c.KeyPoint = c.Subtype
	}

	if verr := validateFields(c.Subtype, c.OriginalPhrase, c.Correction); verr != nil {
		return models.PendingCandidate{}, verr
	}
	return c, nil
}

func validateFields(subtype, phrase, correction string) *ValidationError {
	switch {
	case subtype == "":
		return &ValidationError{Field: "subtype", Reason: "must not be empty"}
	case phrase == "":
		return &ValidationError{Field: "original_phrase", Reason: "must not be empty"}
	case correction == "":
		return &ValidationError{Field: "correction", Reason: "must not be empty"}
	}
	return nil
}

// normalize trims and collapses inner whitespace. Case is kept.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
