package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// SettingsRepository persists the daily limit settings (a single row)
type SettingsRepository struct{}

// NewSettingsRepository creates a new repository instance
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{}
}

// Get returns the stored settings, or ErrNotFound before the first Save
func (r *SettingsRepository) Get(ctx context.Context, q sqlx.ExtContext) (*models.DailyLimitSettings, error) {
	var s models.DailyLimitSettings
	err := sqlx.GetContext(ctx, q, &s, `SELECT daily_limit, limit_enabled, updated_at FROM daily_limit_settings WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get daily limit settings: %w", err)
	}
	return &s, nil
}

// Seed stores defaults unless settings already exist
func (r *SettingsRepository) Seed(ctx context.Context, q sqlx.ExtContext, s models.DailyLimitSettings) error {
	query := q.Rebind(`
		INSERT INTO daily_limit_settings (id, daily_limit, limit_enabled, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	if _, err := q.ExecContext(ctx, query, s.Limit, s.Enabled, s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to seed daily limit settings: %w", err)
	}
	return nil
}

// Save replaces the stored settings
func (r *SettingsRepository) Save(ctx context.Context, q sqlx.ExtContext, s models.DailyLimitSettings) error {
	query := q.Rebind(`
		INSERT INTO daily_limit_settings (id, daily_limit, limit_enabled, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			daily_limit = excluded.daily_limit,
			limit_enabled = excluded.limit_enabled,
			updated_at = excluded.updated_at`)
	if _, err := q.ExecContext(ctx, query, s.Limit, s.Enabled, s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save daily limit settings: %w", err)
	}
	return nil
}
