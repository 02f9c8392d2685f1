package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// VersionRepository stores append-only snapshots of knowledge points
type VersionRepository struct{}

// NewVersionRepository creates a new repository instance
func NewVersionRepository() *VersionRepository {
	return &VersionRepository{}
}

// Snapshot records the current state of kp under kp.VersionNumber.
// Must run in the same transaction as the mutation it describes.
func (r *VersionRepository) Snapshot(ctx context.Context, q sqlx.ExtContext, kp *models.KnowledgePoint, change models.ChangeType, at time.Time) error {
	query := q.Rebind(`
		INSERT INTO knowledge_point_versions (
			knowledge_point_id, version_number, change_type, category, subtype,
			key_point, explanation, original_phrase, correction, mastery_level,
			mistake_count, correct_count, next_review, is_deleted, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := q.ExecContext(ctx, query,
		kp.ID,
		kp.VersionNumber,
		change,
		kp.Category,
		kp.Subtype,
		kp.KeyPoint,
		kp.Explanation,
		kp.OriginalPhrase,
		kp.Correction,
		kp.MasteryLevel,
		kp.MistakeCount,
		kp.CorrectCount,
		kp.NextReview,
		kp.IsDeleted,
		at,
	)
	if err != nil {
		return fmt.Errorf("failed to record version %d of knowledge point %d: %w", kp.VersionNumber, kp.ID, classify(err))
	}
	return nil
}

// List returns all versions of a point in ascending order
func (r *VersionRepository) List(ctx context.Context, q sqlx.ExtContext, pointID int64) ([]models.KnowledgePointVersion, error) {
	versions := []models.KnowledgePointVersion{}
	query := q.Rebind(`
		SELECT id, knowledge_point_id, version_number, change_type, category, subtype,
			key_point, explanation, original_phrase, correction, mastery_level,
			mistake_count, correct_count, next_review, is_deleted, created_at
		FROM knowledge_point_versions
		WHERE knowledge_point_id = ?
		ORDER BY version_number ASC`)
	if err := sqlx.SelectContext(ctx, q, &versions, query, pointID); err != nil {
		return nil, fmt.Errorf("failed to list versions of knowledge point %d: %w", pointID, err)
	}
	return versions, nil
}
