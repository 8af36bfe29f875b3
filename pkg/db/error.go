package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	sqlStateUniqueViolation = "23505"
	sqlStateUndefinedTable  = "42P01"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}

	msg := err.Error()
	// MySQL 1062, SQLite 2067
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "Error 1062") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsUndefinedTable reports whether err was caused by a missing relation.
func IsUndefinedTable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUndefinedTable
	}

	msg := err.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "doesn't exist")
}
