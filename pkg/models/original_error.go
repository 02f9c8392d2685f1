package models

import "time"

// OriginalError is the first sentence/answer pair that produced a knowledge point.
// It is written once together with the point and never changes.
type OriginalError struct {
	ID               int64     `json:"id" db:"id"`
	KnowledgePointID int64     `json:"knowledge_point_id" db:"knowledge_point_id"`
	SourceSentence   string    `json:"source_sentence" db:"source_sentence"`
	LearnerAnswer    string    `json:"learner_answer" db:"learner_answer"`
	Correction       string    `json:"correction" db:"correction"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
