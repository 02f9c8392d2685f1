package models

import "time"

// KnowledgePoint is one recurring mistake tracked with a mastery score
type KnowledgePoint struct {
	ID             int64      `json:"id" db:"id"`
	ExternalID     string     `json:"external_id" db:"external_id"` // Public identifier (UUID)
	Category       Category   `json:"category" db:"category"`
	Subtype        string     `json:"subtype" db:"subtype"`     // Free-form label within the category
	KeyPoint       string     `json:"key_point" db:"key_point"` // Short rule name
	Explanation    string     `json:"explanation" db:"explanation"`
	OriginalPhrase string     `json:"original_phrase" db:"original_phrase"`
	Correction     string     `json:"correction" db:"correction"`
	MasteryLevel   float64    `json:"mastery_level" db:"mastery_level"` // 0.0 - 1.0
	MistakeCount   int        `json:"mistake_count" db:"mistake_count"`
	CorrectCount   int        `json:"correct_count" db:"correct_count"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastSeen       time.Time  `json:"last_seen" db:"last_seen"`
	NextReview     *time.Time `json:"next_review,omitempty" db:"next_review"`
	IsDeleted      bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedReason  string     `json:"deleted_reason,omitempty" db:"deleted_reason"`
	VersionNumber  int        `json:"version_number" db:"version_number"`
}

// SemanticKey identifies a mistake independently of its surrogate key.
// At most one active point may hold a given key.
type SemanticKey struct {
	KeyPoint       string
	OriginalPhrase string
	Correction     string
}

// Key returns the semantic key of the point
func (kp *KnowledgePoint) Key() SemanticKey {
	return SemanticKey{
		KeyPoint:       kp.KeyPoint,
		OriginalPhrase: kp.OriginalPhrase,
		Correction:     kp.Correction,
	}
}

// IsDue reports whether the point should be reviewed at now
func (kp *KnowledgePoint) IsDue(now time.Time) bool {
	return kp.NextReview != nil && !kp.NextReview.After(now)
}
