package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes that indicate the transaction lost a race and may
// succeed on retry.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// IsUniqueViolation reports whether the provided error references a unique
// violation. When constraintName is provided, the helper additionally looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	matched := false
	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		matched = pgxErr.Code == "23505"
	case errors.As(err, &pqErr):
		matched = string(pqErr.Code) == "23505"
	default:
		// sqlite and driverless paths only expose message text.
		matched = strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "duplicate key value")
	}
	if !matched {
		return false
	}
	if constraintName != "" {
		return strings.Contains(err.Error(), constraintName)
	}
	return true
}

// IsTransientConflict reports whether the error is a concurrency conflict
// worth retrying: serialization failures, deadlocks and lock timeouts on
// Postgres, or sqlite's busy error. Unique violations are not transient.
func IsTransientConflict(err error) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return transientSQLState(pgxErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientSQLState(string(pqErr.Code))
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") {
		return true
	}
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "lock timeout")
}

func transientSQLState(code string) bool {
	switch code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}
