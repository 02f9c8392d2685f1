package models

import "time"

// ChangeType describes the mutation a version row records
type ChangeType string

const (
	ChangeCreate  ChangeType = "create"
	ChangeMerge   ChangeType = "merge"
	ChangeReview  ChangeType = "review"
	ChangeEdit    ChangeType = "edit"
	ChangeDelete  ChangeType = "delete"
	ChangeRestore ChangeType = "restore"
)

// KnowledgePointVersion is an immutable snapshot of a point after a committed mutation
type KnowledgePointVersion struct {
	ID               int64      `json:"id" db:"id"`
	KnowledgePointID int64      `json:"knowledge_point_id" db:"knowledge_point_id"`
	VersionNumber    int        `json:"version_number" db:"version_number"`
	ChangeType       ChangeType `json:"change_type" db:"change_type"`
	Category         Category   `json:"category" db:"category"`
	Subtype          string     `json:"subtype" db:"subtype"`
	KeyPoint         string     `json:"key_point" db:"key_point"`
	Explanation      string     `json:"explanation" db:"explanation"`
	OriginalPhrase   string     `json:"original_phrase" db:"original_phrase"`
	Correction       string     `json:"correction" db:"correction"`
	MasteryLevel     float64    `json:"mastery_level" db:"mastery_level"`
	MistakeCount     int        `json:"mistake_count" db:"mistake_count"`
	CorrectCount     int        `json:"correct_count" db:"correct_count"`
	NextReview       *time.Time `json:"next_review,omitempty" db:"next_review"`
	IsDeleted        bool       `json:"is_deleted" db:"is_deleted"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}
