package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// StatisticsRepository answers aggregate read-only questions about the store
type StatisticsRepository struct{}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository() *StatisticsRepository {
	return &StatisticsRepository{}
}

type categoryCount struct {
	Category models.Category `db:"category"`
	Count    int             `db:"count"`
}

// Overview returns counts and average mastery of the store at now
func (r *StatisticsRepository) Overview(ctx context.Context, q sqlx.ExtContext, now time.Time) (*models.Statistics, error) {
	stats := &models.Statistics{ByCategory: make(map[models.Category]int)}

	var totals struct {
		Active  int     `db:"active"`
		Deleted int     `db:"deleted"`
		Average float64 `db:"average"`
	}
	err := sqlx.GetContext(ctx, q, &totals, `
		SELECT
			COALESCE(SUM(CASE WHEN is_deleted THEN 0 ELSE 1 END), 0) AS active,
			COALESCE(SUM(CASE WHEN is_deleted THEN 1 ELSE 0 END), 0) AS deleted,
			COALESCE(AVG(CASE WHEN is_deleted THEN NULL ELSE mastery_level END), 0) AS average
		FROM knowledge_points`)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	stats.ActivePoints = totals.Active
	stats.DeletedPoints = totals.Deleted
	stats.AverageMastery = totals.Average

	if stats.DueNow, err = r.CountDueBefore(ctx, q, now); err != nil {
		return nil, err
	}

	var counts []categoryCount
	err = sqlx.SelectContext(ctx, q, &counts, `
		SELECT category, COUNT(*) AS count
		FROM knowledge_points
		WHERE NOT is_deleted
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to get category statistics: %w", err)
	}
	for _, c := range counts {
		stats.ByCategory[c.Category] = c.Count
	}
	return stats, nil
}

// CountDueBefore counts active points whose next review is at or before t
func (r *StatisticsRepository) CountDueBefore(ctx context.Context, q sqlx.ExtContext, t time.Time) (int, error) {
	var count int
	query := q.Rebind(`
		SELECT COUNT(*) FROM knowledge_points
		WHERE NOT is_deleted AND next_review IS NOT NULL AND next_review <= ?`)
	if err := sqlx.GetContext(ctx, q, &count, query, t.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count due knowledge points: %w", err)
	}
	return count, nil
}

// CountLowMastery counts active points with mastery strictly below threshold
func (r *StatisticsRepository) CountLowMastery(ctx context.Context, q sqlx.ExtContext, threshold float64) (int, error) {
	var count int
	query := q.Rebind(`SELECT COUNT(*) FROM knowledge_points WHERE NOT is_deleted AND mastery_level < ?`)
	if err := sqlx.GetContext(ctx, q, &count, query, threshold); err != nil {
		return 0, fmt.Errorf("failed to count low mastery knowledge points: %w", err)
	}
	return count, nil
}

// AverageMastery returns the mean mastery of active points, 0 when there are none
func (r *StatisticsRepository) AverageMastery(ctx context.Context, q sqlx.ExtContext) (float64, error) {
	var avg float64
	err := sqlx.GetContext(ctx, q, &avg, `SELECT COALESCE(AVG(mastery_level), 0) FROM knowledge_points WHERE NOT is_deleted`)
	if err != nil {
		return 0, fmt.Errorf("failed to get average mastery: %w", err)
	}
	return avg, nil
}

// MistakeFrequencySince counts mistakes per category on active points since
// t. Original errors and incorrect review attempts both count.
func (r *StatisticsRepository) MistakeFrequencySince(ctx context.Context, q sqlx.ExtContext, since time.Time) (map[models.Category]int, error) {
	var counts []categoryCount
	query := q.Rebind(`
		SELECT kp.category AS category, COUNT(*) AS count
		FROM (
			SELECT knowledge_point_id, created_at FROM original_errors WHERE created_at >= ?
			UNION ALL
			SELECT knowledge_point_id, created_at FROM review_examples WHERE NOT is_correct AND created_at >= ?
		) m
		JOIN knowledge_points kp ON kp.id = m.knowledge_point_id
		WHERE NOT kp.is_deleted
		GROUP BY kp.category`)
	if err := sqlx.SelectContext(ctx, q, &counts, query, since.UTC(), since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get mistake frequency: %w", err)
	}

	freq := make(map[models.Category]int, len(counts))
	for _, c := range counts {
		freq[c.Category] = c.Count
	}
	return freq, nil
}
