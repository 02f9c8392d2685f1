package models

import "time"

// PendingCandidate is a proposed knowledge point waiting for the learner's
// confirmation. It lives only in memory.
type PendingCandidate struct {
	ID             int       `json:"id"` // position within its token, starting at 1
	Token          string    `json:"token"`
	Category       Category  `json:"category"`
	Subtype        string    `json:"subtype"`
	KeyPoint       string    `json:"key_point"`
	Explanation    string    `json:"explanation"`
	OriginalPhrase string    `json:"original_phrase"`
	Correction     string    `json:"correction"`
	SourceSentence string    `json:"source_sentence"`
	LearnerAnswer  string    `json:"learner_answer"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Key returns the semantic key the candidate would occupy
func (c *PendingCandidate) Key() SemanticKey {
	return SemanticKey{
		KeyPoint:       c.KeyPoint,
		OriginalPhrase: c.OriginalPhrase,
		Correction:     c.Correction,
	}
}
