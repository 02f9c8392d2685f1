package models

// ErrorAnalysis is one mistake found by the grader
type ErrorAnalysis struct {
	Category       string `json:"category"` // free text until validated
	Subtype        string `json:"subtype"`
	KeyPoint       string `json:"key_point,omitempty"`
	Explanation    string `json:"explanation"`
	OriginalPhrase string `json:"original_phrase"`
	Correction     string `json:"correction"`
}

// GradingResult is the grader's verdict on a learner answer
type GradingResult struct {
	IsCorrect     bool            `json:"is_correct"`
	ErrorAnalyses []ErrorAnalysis `json:"error_analyses"`
}
