package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || hasSQLState(err, "23505") {
		return true
	}

	msg := err.Error()
	// PostgreSQL (23505) surfaced as text by some drivers
	if strings.Contains(msg, "duplicate key value violates unique constraint") {
		return true
	}
	// MySQL (1062)
	if strings.Contains(msg, "Error 1062") {
		return true
	}
	// SQLite (2067)
	return strings.Contains(msg, "UNIQUE constraint failed")
}

// IsConflictErr reports write anomalies that succeed when the transaction is retried:
// serialization failures, deadlocks and lock timeouts.
func IsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	if hasSQLState(err, "40001") || hasSQLState(err, "40P01") || hasSQLState(err, "55P03") {
		return true
	}
	msg := err.Error()
	// MySQL deadlock (1213) and SQLite busy
	return strings.Contains(msg, "Error 1213") || strings.Contains(msg, "database is locked")
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}
