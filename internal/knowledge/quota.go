package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/errbook/internal/config"
	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// QuotaGuard admits new points of throttled categories against the daily limit
type QuotaGuard struct {
	store    *database.Store
	loc      *time.Location
	defaults models.DailyLimitSettings
}

// Day returns the quota day of now in the configured timezone
func (g *QuotaGuard) Day(now time.Time) string {
	return now.In(g.loc).Format("2006-01-02")
}

// Settings returns the stored limit settings, or the configured defaults
// when an admin never changed them
func (g *QuotaGuard) Settings(ctx context.Context, q sqlx.ExtContext) (models.DailyLimitSettings, error) {
	s, err := g.store.Settings.Get(ctx, q)
	if errors.Is(err, database.ErrNotFound) {
		return g.defaults, nil
	}
	if err != nil {
		return models.DailyLimitSettings{}, err
	}
	return *s, nil
}

// TryAdmit takes one slot of today's quota for category. Categories that are
// not throttled are always admitted. When the limit is disabled the slot is
// still counted so the status stays accurate.
func (g *QuotaGuard) TryAdmit(ctx context.Context, q sqlx.ExtContext, category models.Category, now time.Time) (bool, error) {
	if !category.Throttled() {
		return true, nil
	}

	settings, err := g.Settings(ctx, q)
	if err != nil {
		return false, err
	}
	limit := 0
	if settings.Enabled {
		limit = settings.Limit
	}
	return g.store.Counters.TryIncrement(ctx, q, g.Day(now), category, limit, now)
}

// Status reports today's usage per throttled category
func (g *QuotaGuard) Status(ctx context.Context, q sqlx.ExtContext, now time.Time) (*models.DailyLimitStatus, error) {
	settings, err := g.Settings(ctx, q)
	if err != nil {
		return nil, err
	}
	day := g.Day(now)
	usage, err := g.store.Counters.UsageForDay(ctx, q, day)
	if err != nil {
		return nil, err
	}

	status := &models.DailyLimitStatus{
		Day:            day,
		Enabled:        settings.Enabled,
		Limit:          settings.Limit,
		UsedByCategory: make(map[models.Category]int),
		Remaining:      make(map[models.Category]int),
	}
	for _, c := range models.Categories {
		if !c.Throttled() {
			continue
		}
		used := usage[c]
		status.UsedByCategory[c] = used
		status.Remaining[c] = max(settings.Limit-used, 0)
	}
	return status, nil
}

// SetConfig stores new limit settings
func (g *QuotaGuard) SetConfig(ctx context.Context, q sqlx.ExtContext, limit int, enabled bool, now time.Time) error {
	if limit < config.MinDailyLimit || limit > config.MaxDailyLimit {
		return &ValidationError{
			Field:  "daily_knowledge_limit",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", config.MinDailyLimit, config.MaxDailyLimit, limit),
		}
	}
	return g.store.Settings.Save(ctx, q, models.DailyLimitSettings{Limit: limit, Enabled: enabled, UpdatedAt: now})
}

// Seed stores the configured defaults unless settings were saved before
func (g *QuotaGuard) Seed(ctx context.Context, q sqlx.ExtContext, now time.Time) error {
	s := g.defaults
	s.UpdatedAt = now
	return g.store.Settings.Seed(ctx, q, s)
}
