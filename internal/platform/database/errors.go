package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pqUniqueViolation = "23505"

// UniqueViolation reports whether err is a unique constraint failure and
// returns a backend-specific identifier for the violated key: the constraint
// name for Postgres, the "table.column[, ...]" list for SQLite.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return pqErr.Constraint, true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
			return "", false
		}
		_, cols, found := strings.Cut(liteErr.Error(), "UNIQUE constraint failed: ")
		if !found {
			return "", false
		}
		cols, _, _ = strings.Cut(cols, " (")
		return strings.TrimSpace(cols), true
	}
	return "", false
}
