package database

import (
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("database: not found")
	// ErrVersionConflict is returned when a row changed since it was read
	ErrVersionConflict = errors.New("database: version conflict")
	// ErrDuplicateKey is returned when a unique constraint rejects a write
	ErrDuplicateKey = errors.New("database: duplicate key")
)

// IsTransient reports whether err is worth retrying as is: a busy or locked
// SQLite database, a lost postgres connection, or a dead pooled connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}

	var pe *pq.Error
	if errors.As(err, &pe) {
		// 08: connection exception, 57P01: admin shutdown
		return pe.Code.Class() == "08" || pe.Code == "57P01"
	}
	return false
}

// isUniqueViolation reports whether err comes from a unique or primary key constraint
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// isSerializationFailure reports postgres serialization/deadlock aborts
func isSerializationFailure(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "40001" || pe.Code == "40P01"
	}
	return false
}

// classify maps driver errors onto the package sentinels
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return errors.Join(ErrDuplicateKey, err)
	case isSerializationFailure(err):
		return errors.Join(ErrVersionConflict, err)
	}
	return err
}
