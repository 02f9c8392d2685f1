package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

const pointColumns = `id, external_id, category, subtype, key_point, explanation,
	original_phrase, correction, mastery_level, mistake_count, correct_count,
	created_at, last_seen, next_review, is_deleted, deleted_at, deleted_reason, version_number`

// KnowledgePointRepository handles database operations for knowledge points.
// Every method takes the executor so it can run inside or outside a transaction.
type KnowledgePointRepository struct{}

// NewKnowledgePointRepository creates a new repository instance
func NewKnowledgePointRepository() *KnowledgePointRepository {
	return &KnowledgePointRepository{}
}

// PointFilter narrows ListActive
type PointFilter struct {
	Category   models.Category
	Subtype    string
	MaxMastery *float64
	Search     string // substring of key point, phrase or correction
	Limit      int
	Offset     int
}

// GetByID returns a point by ID, active or deleted
func (r *KnowledgePointRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id int64) (*models.KnowledgePoint, error) {
	var kp models.KnowledgePoint
	query := q.Rebind(`SELECT ` + pointColumns + ` FROM knowledge_points WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &kp, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get knowledge point %d: %w", id, err)
	}
	return &kp, nil
}

// GetByExternalID returns a point by its public identifier
func (r *KnowledgePointRepository) GetByExternalID(ctx context.Context, q sqlx.ExtContext, externalID string) (*models.KnowledgePoint, error) {
	var kp models.KnowledgePoint
	query := q.Rebind(`SELECT ` + pointColumns + ` FROM knowledge_points WHERE external_id = ?`)
	if err := sqlx.GetContext(ctx, q, &kp, query, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get knowledge point %s: %w", externalID, err)
	}
	return &kp, nil
}

// FindActiveByKey returns the active point holding key, or ErrNotFound
func (r *KnowledgePointRepository) FindActiveByKey(ctx context.Context, q sqlx.ExtContext, key models.SemanticKey) (*models.KnowledgePoint, error) {
	var kp models.KnowledgePoint
	query := q.Rebind(`SELECT ` + pointColumns + ` FROM knowledge_points
		WHERE key_point = ? AND original_phrase = ? AND correction = ? AND NOT is_deleted`)
	err := sqlx.GetContext(ctx, q, &kp, query, key.KeyPoint, key.OriginalPhrase, key.Correction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find knowledge point by key: %w", err)
	}
	return &kp, nil
}

// Insert creates a point and sets kp.ID
func (r *KnowledgePointRepository) Insert(ctx context.Context, q sqlx.ExtContext, kp *models.KnowledgePoint) error {
	query := q.Rebind(`
		INSERT INTO knowledge_points (
			external_id, category, subtype, key_point, explanation,
			original_phrase, correction, mastery_level, mistake_count, correct_count,
			created_at, last_seen, next_review, is_deleted, deleted_at, deleted_reason, version_number
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := q.QueryRowxContext(ctx, query,
		kp.ExternalID,
		kp.Category,
		kp.Subtype,
		kp.KeyPoint,
		kp.Explanation,
		kp.OriginalPhrase,
		kp.Correction,
		kp.MasteryLevel,
		kp.MistakeCount,
		kp.CorrectCount,
		kp.CreatedAt,
		kp.LastSeen,
		kp.NextReview,
		kp.IsDeleted,
		kp.DeletedAt,
		kp.DeletedReason,
		kp.VersionNumber,
	).Scan(&kp.ID)
	if err != nil {
		return fmt.Errorf("failed to create knowledge point: %w", classify(err))
	}
	return nil
}

// Update writes every mutable field of kp if the stored version still equals
// expectedVersion, and bumps the stored version to kp.VersionNumber.
// A stale expectedVersion yields ErrVersionConflict.
func (r *KnowledgePointRepository) Update(ctx context.Context, q sqlx.ExtContext, kp *models.KnowledgePoint, expectedVersion int) error {
	query := q.Rebind(`
		UPDATE knowledge_points SET
			category = ?,
			subtype = ?,
			key_point = ?,
			explanation = ?,
			original_phrase = ?,
			correction = ?,
			mastery_level = ?,
			mistake_count = ?,
			correct_count = ?,
			last_seen = ?,
			next_review = ?,
			is_deleted = ?,
			deleted_at = ?,
			deleted_reason = ?,
			version_number = ?
		WHERE id = ? AND version_number = ?`)
	result, err := q.ExecContext(ctx, query,
		kp.Category,
		kp.Subtype,
		kp.KeyPoint,
		kp.Explanation,
		kp.OriginalPhrase,
		kp.Correction,
		kp.MasteryLevel,
		kp.MistakeCount,
		kp.CorrectCount,
		kp.LastSeen,
		kp.NextReview,
		kp.IsDeleted,
		kp.DeletedAt,
		kp.DeletedReason,
		kp.VersionNumber,
		kp.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update knowledge point %d: %w", kp.ID, classify(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ListActive returns non-deleted points matching filter, lowest mastery first
func (r *KnowledgePointRepository) ListActive(ctx context.Context, q sqlx.ExtContext, filter PointFilter) ([]models.KnowledgePoint, error) {
	var (
		where = []string{"NOT is_deleted"}
		args  []interface{}
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Subtype != "" {
		where = append(where, "subtype = ?")
		args = append(args, filter.Subtype)
	}
	if filter.MaxMastery != nil {
		where = append(where, "mastery_level <= ?")
		args = append(args, *filter.MaxMastery)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, "(key_point LIKE ? OR original_phrase LIKE ? OR correction LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + pointColumns + ` FROM knowledge_points WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY mastery_level ASC, last_seen ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	points := []models.KnowledgePoint{}
	if err := sqlx.SelectContext(ctx, q, &points, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list knowledge points: %w", err)
	}
	return points, nil
}

// ListDeleted returns soft-deleted points, most recently deleted first
func (r *KnowledgePointRepository) ListDeleted(ctx context.Context, q sqlx.ExtContext) ([]models.KnowledgePoint, error) {
	points := []models.KnowledgePoint{}
	query := `SELECT ` + pointColumns + ` FROM knowledge_points WHERE is_deleted ORDER BY deleted_at DESC, id DESC`
	if err := sqlx.SelectContext(ctx, q, &points, query); err != nil {
		return nil, fmt.Errorf("failed to list deleted knowledge points: %w", err)
	}
	return points, nil
}

// ListDue returns active points whose next review is at or before now.
// Timestamps are stored and compared in UTC.
func (r *KnowledgePointRepository) ListDue(ctx context.Context, q sqlx.ExtContext, now time.Time) ([]models.KnowledgePoint, error) {
	points := []models.KnowledgePoint{}
	query := q.Rebind(`SELECT ` + pointColumns + ` FROM knowledge_points
		WHERE NOT is_deleted AND next_review IS NOT NULL AND next_review <= ?
		ORDER BY next_review ASC, id ASC`)
	if err := sqlx.SelectContext(ctx, q, &points, query, now.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get due knowledge points: %w", err)
	}
	return points, nil
}

// ListNotDueByMastery returns active points that are not yet due, weakest first
func (r *KnowledgePointRepository) ListNotDueByMastery(ctx context.Context, q sqlx.ExtContext, now time.Time, limit int) ([]models.KnowledgePoint, error) {
	points := []models.KnowledgePoint{}
	query := q.Rebind(`SELECT ` + pointColumns + ` FROM knowledge_points
		WHERE NOT is_deleted AND (next_review IS NULL OR next_review > ?)
		ORDER BY mastery_level ASC, last_seen ASC, id ASC
		LIMIT ?`)
	if err := sqlx.SelectContext(ctx, q, &points, query, now.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to get low mastery knowledge points: %w", err)
	}
	return points, nil
}

// PurgeDeleted permanently removes up to limit points that were soft-deleted
// before cutoff. Dependents go with them through ON DELETE CASCADE.
func (r *KnowledgePointRepository) PurgeDeleted(ctx context.Context, q sqlx.ExtContext, cutoff time.Time, limit int) (int64, error) {
	query := q.Rebind(`
		DELETE FROM knowledge_points WHERE id IN (
			SELECT id FROM knowledge_points
			WHERE is_deleted AND deleted_at IS NOT NULL AND deleted_at < ?
			ORDER BY deleted_at ASC, id ASC
			LIMIT ?
		)`)
	result, err := q.ExecContext(ctx, query, cutoff.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to purge knowledge points: %w", err)
	}
	return result.RowsAffected()
}
