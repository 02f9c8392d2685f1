package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store is the transactional home of every knowledge-point table
type Store struct {
	db       *sqlx.DB
	maxTries uint

	Points   *KnowledgePointRepository
	Versions *VersionRepository
	Examples *ReviewExampleRepository
	Counters *DailyCounterRepository
	Settings *SettingsRepository
	Stats    *StatisticsRepository
}

// DriverFor maps a configured DB_TYPE onto a driver name
func DriverFor(kind string) (string, error) {
	switch strings.ToLower(kind) {
	case "sqlite", "sqlite3", "":
		return DriverSQLite, nil
	case "postgres", "postgresql":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported DB_TYPE %q", kind)
}

// Connect opens the database for driver ("sqlite3" or "postgres") and initializes the schema
func Connect(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureDataDir(dsn); err != nil {
			return nil, err
		}
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := New(db)
	if err := s.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened connection
func New(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		maxTries: 5,
		Points:   NewKnowledgePointRepository(),
		Versions: NewVersionRepository(),
		Examples: NewReviewExampleRepository(),
		Counters: NewDailyCounterRepository(),
		Settings: NewSettingsRepository(),
		Stats:    NewStatisticsRepository(),
	}
}

// DB exposes the connection for read-only queries outside a transaction
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InTx runs fn inside a transaction. Transient failures (busy database, dropped
// connection) are retried with backoff; every other error is returned as is.
func (s *Store) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	op := func() (struct{}, error) {
		err := s.runTx(ctx, fn)
		if err != nil && !IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(s.maxTries),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}

func ensureDataDir(dsn string) error {
	if isMemoryDSN(dsn) {
		return nil
	}
	dir := filepath.Dir(strings.TrimPrefix(strings.SplitN(dsn, "?", 2)[0], "file:"))
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// sqliteDSN turns on foreign keys for every pooled connection
func sqliteDSN(dsn string) string {
	params := "_foreign_keys=on&_busy_timeout=5000"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
