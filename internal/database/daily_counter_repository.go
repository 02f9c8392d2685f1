package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// DailyCounterRepository keeps per-day, per-category admission counters
type DailyCounterRepository struct{}

// NewDailyCounterRepository creates a new repository instance
func NewDailyCounterRepository() *DailyCounterRepository {
	return &DailyCounterRepository{}
}

// TryIncrement adds one to the (day, category) counter unless it already
// reached limit. The check and the increment are a single statement, so two
// concurrent callers can never both take the last slot. A limit <= 0 means
// unlimited. It reports whether the slot was taken.
func (r *DailyCounterRepository) TryIncrement(ctx context.Context, q sqlx.ExtContext, day string, category models.Category, limit int, now time.Time) (bool, error) {
	query := `
		INSERT INTO daily_category_counters (day, category, count, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (day, category) DO UPDATE SET
			count = daily_category_counters.count + 1,
			updated_at = excluded.updated_at`
	args := []interface{}{day, category, now.UTC()}
	if limit > 0 {
		query += ` WHERE daily_category_counters.count < ?`
		args = append(args, limit)
	}

	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to increment daily counter: %w", classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// UsageForDay returns the counters recorded for day, keyed by category
func (r *DailyCounterRepository) UsageForDay(ctx context.Context, q sqlx.ExtContext, day string) (map[models.Category]int, error) {
	var counters []models.DailyCategoryCounter
	query := q.Rebind(`SELECT day, category, count, updated_at FROM daily_category_counters WHERE day = ?`)
	if err := sqlx.SelectContext(ctx, q, &counters, query, day); err != nil {
		return nil, fmt.Errorf("failed to get daily usage: %w", err)
	}

	usage := make(map[models.Category]int, len(models.Categories))
	for _, c := range counters {
		usage[c.Category] = c.Count
	}
	return usage, nil
}
