package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ReviewExampleRepository handles the original error and review attempts of a point
type ReviewExampleRepository struct{}

// NewReviewExampleRepository creates a new repository instance
func NewReviewExampleRepository() *ReviewExampleRepository {
	return &ReviewExampleRepository{}
}

// InsertOriginal stores the first error of a point. A second call for the
// same point fails with ErrDuplicateKey.
func (r *ReviewExampleRepository) InsertOriginal(ctx context.Context, q sqlx.ExtContext, oe *models.OriginalError) error {
	query := q.Rebind(`
		INSERT INTO original_errors (knowledge_point_id, source_sentence, learner_answer, correction, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)
	err := q.QueryRowxContext(ctx, query,
		oe.KnowledgePointID,
		oe.SourceSentence,
		oe.LearnerAnswer,
		oe.Correction,
		oe.CreatedAt,
	).Scan(&oe.ID)
	if err != nil {
		return fmt.Errorf("failed to store original error: %w", classify(err))
	}
	return nil
}

// GetOriginal returns the original error of a point
func (r *ReviewExampleRepository) GetOriginal(ctx context.Context, q sqlx.ExtContext, pointID int64) (*models.OriginalError, error) {
	var oe models.OriginalError
	query := q.Rebind(`
		SELECT id, knowledge_point_id, source_sentence, learner_answer, correction, created_at
		FROM original_errors WHERE knowledge_point_id = ?`)
	if err := sqlx.GetContext(ctx, q, &oe, query, pointID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get original error: %w", err)
	}
	return &oe, nil
}

// Insert appends a review example
func (r *ReviewExampleRepository) Insert(ctx context.Context, q sqlx.ExtContext, ex *models.ReviewExample) error {
	query := q.Rebind(`
		INSERT INTO review_examples (knowledge_point_id, prompt, answer, correct_answer, is_correct, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := q.QueryRowxContext(ctx, query,
		ex.KnowledgePointID,
		ex.Prompt,
		ex.Answer,
		ex.CorrectAnswer,
		ex.IsCorrect,
		ex.CreatedAt,
	).Scan(&ex.ID)
	if err != nil {
		return fmt.Errorf("failed to store review example: %w", classify(err))
	}
	return nil
}

// List returns the review examples of a point, oldest first
func (r *ReviewExampleRepository) List(ctx context.Context, q sqlx.ExtContext, pointID int64) ([]models.ReviewExample, error) {
	examples := []models.ReviewExample{}
	query := q.Rebind(`
		SELECT id, knowledge_point_id, prompt, answer, correct_answer, is_correct, created_at
		FROM review_examples
		WHERE knowledge_point_id = ?
		ORDER BY created_at ASC, id ASC`)
	if err := sqlx.SelectContext(ctx, q, &examples, query, pointID); err != nil {
		return nil, fmt.Errorf("failed to list review examples: %w", err)
	}
	return examples, nil
}
