package database

import (
	"context"
	"fmt"
)

// Table definitions. Both dialects enforce the same contract: closed category
// set, mastery in [0,1], non-negative counters, one active point per semantic
// key, cascade delete of dependents, unique version numbers per point.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS knowledge_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL CHECK (category IN ('systematic', 'isolated', 'enhancement', 'other')),
		subtype TEXT NOT NULL DEFAULT '',
		key_point TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		original_phrase TEXT NOT NULL,
		correction TEXT NOT NULL,
		mastery_level REAL NOT NULL DEFAULT 0 CHECK (mastery_level >= 0 AND mastery_level <= 1),
		mistake_count INTEGER NOT NULL DEFAULT 0 CHECK (mistake_count >= 0),
		correct_count INTEGER NOT NULL DEFAULT 0 CHECK (correct_count >= 0),
		created_at TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL,
		next_review TIMESTAMP,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TIMESTAMP,
		deleted_reason TEXT NOT NULL DEFAULT '',
		version_number INTEGER NOT NULL DEFAULT 1 CHECK (version_number >= 1),
		CHECK (next_review IS NULL OR next_review >= last_seen)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_knowledge_points_semantic_key
		ON knowledge_points(key_point, original_phrase, correction) WHERE NOT is_deleted`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_points_next_review ON knowledge_points(is_deleted, next_review)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_points_deleted_at ON knowledge_points(is_deleted, deleted_at)`,
	`CREATE TABLE IF NOT EXISTS original_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		knowledge_point_id INTEGER NOT NULL UNIQUE REFERENCES knowledge_points(id) ON DELETE CASCADE,
		source_sentence TEXT NOT NULL DEFAULT '',
		learner_answer TEXT NOT NULL DEFAULT '',
		correction TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS review_examples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		knowledge_point_id INTEGER NOT NULL REFERENCES knowledge_points(id) ON DELETE CASCADE,
		prompt TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL DEFAULT '',
		correct_answer TEXT NOT NULL DEFAULT '',
		is_correct BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_review_examples_point ON review_examples(knowledge_point_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS knowledge_point_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		knowledge_point_id INTEGER NOT NULL REFERENCES knowledge_points(id) ON DELETE CASCADE,
		version_number INTEGER NOT NULL CHECK (version_number >= 1),
		change_type TEXT NOT NULL,
		category TEXT NOT NULL,
		subtype TEXT NOT NULL DEFAULT '',
		key_point TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		original_phrase TEXT NOT NULL,
		correction TEXT NOT NULL,
		mastery_level REAL NOT NULL,
		mistake_count INTEGER NOT NULL,
		correct_count INTEGER NOT NULL,
		next_review TIMESTAMP,
		is_deleted BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (knowledge_point_id, version_number)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_category_counters (
		day TEXT NOT NULL,
		category TEXT NOT NULL CHECK (category IN ('systematic', 'isolated', 'enhancement', 'other')),
		count INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (day, category)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_limit_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		daily_limit INTEGER NOT NULL CHECK (daily_limit BETWEEN 5 AND 50),
		limit_enabled BOOLEAN NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS knowledge_points (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL CHECK (category IN ('systematic', 'isolated', 'enhancement', 'other')),
		subtype TEXT NOT NULL DEFAULT '',
		key_point TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		original_phrase TEXT NOT NULL,
		correction TEXT NOT NULL,
		mastery_level DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (mastery_level >= 0 AND mastery_level <= 1),
		mistake_count INTEGER NOT NULL DEFAULT 0 CHECK (mistake_count >= 0),
		correct_count INTEGER NOT NULL DEFAULT 0 CHECK (correct_count >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL,
		next_review TIMESTAMPTZ,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TIMESTAMPTZ,
		deleted_reason TEXT NOT NULL DEFAULT '',
		version_number INTEGER NOT NULL DEFAULT 1 CHECK (version_number >= 1),
		CHECK (next_review IS NULL OR next_review >= last_seen)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_knowledge_points_semantic_key
		ON knowledge_points(key_point, original_phrase, correction) WHERE NOT is_deleted`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_points_next_review ON knowledge_points(is_deleted, next_review)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_points_deleted_at ON knowledge_points(is_deleted, deleted_at)`,
	`CREATE TABLE IF NOT EXISTS original_errors (
		id BIGSERIAL PRIMARY KEY,
		knowledge_point_id BIGINT NOT NULL UNIQUE REFERENCES knowledge_points(id) ON DELETE CASCADE,
		source_sentence TEXT NOT NULL DEFAULT '',
		learner_answer TEXT NOT NULL DEFAULT '',
		correction TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS review_examples (
		id BIGSERIAL PRIMARY KEY,
		knowledge_point_id BIGINT NOT NULL REFERENCES knowledge_points(id) ON DELETE CASCADE,
		prompt TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL DEFAULT '',
		correct_answer TEXT NOT NULL DEFAULT '',
		is_correct BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_review_examples_point ON review_examples(knowledge_point_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS knowledge_point_versions (
		id BIGSERIAL PRIMARY KEY,
		knowledge_point_id BIGINT NOT NULL REFERENCES knowledge_points(id) ON DELETE CASCADE,
		version_number INTEGER NOT NULL CHECK (version_number >= 1),
		change_type TEXT NOT NULL,
		category TEXT NOT NULL,
		subtype TEXT NOT NULL DEFAULT '',
		key_point TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		original_phrase TEXT NOT NULL,
		correction TEXT NOT NULL,
		mastery_level DOUBLE PRECISION NOT NULL,
		mistake_count INTEGER NOT NULL,
		correct_count INTEGER NOT NULL,
		next_review TIMESTAMPTZ,
		is_deleted BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (knowledge_point_id, version_number)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_category_counters (
		day TEXT NOT NULL,
		category TEXT NOT NULL CHECK (category IN ('systematic', 'isolated', 'enhancement', 'other')),
		count INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (day, category)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_limit_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		daily_limit INTEGER NOT NULL CHECK (daily_limit BETWEEN 5 AND 50),
		limit_enabled BOOLEAN NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// initializeSchema creates necessary tables if they don't exist
func (s *Store) initializeSchema(ctx context.Context) error {
	statements := sqliteSchema
	if s.db.DriverName() == DriverPostgres {
		statements = postgresSchema
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
