package models

import "time"

// QueueReason explains why a point was put in the practice queue
type QueueReason string

const (
	ReasonDueReview   QueueReason = "due_review"
	ReasonLowMastery  QueueReason = "low_mastery"
	ReasonRecentError QueueReason = "recent_error"
)

// PracticeQueueEntry is a derived, recomputable view of what to practice next
type PracticeQueueEntry struct {
	KnowledgePointID int64           `json:"knowledge_point_id"`
	Priority         float64         `json:"priority"`
	ScheduledFor     time.Time       `json:"scheduled_for"`
	Reason           QueueReason     `json:"reason"`
	Point            *KnowledgePoint `json:"point,omitempty"`
}

// Recommendation summarizes where the learner should focus
type Recommendation struct {
	FocusAreas          []Category `json:"focus_areas"`
	SuggestedDifficulty int        `json:"suggested_difficulty"` // 1-5
	NextReviewCount     int        `json:"next_review_count"`
	LowMasteryCount     int        `json:"low_mastery_count"`
}
