package models

import "time"

// ReviewExample records one practice attempt against a knowledge point
type ReviewExample struct {
	ID               int64     `json:"id" db:"id"`
	KnowledgePointID int64     `json:"knowledge_point_id" db:"knowledge_point_id"`
	Prompt           string    `json:"prompt" db:"prompt"`
	Answer           string    `json:"answer" db:"answer"`
	CorrectAnswer    string    `json:"correct_answer" db:"correct_answer"`
	IsCorrect        bool      `json:"is_correct" db:"is_correct"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
