package database

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

var (
	pgKeyDetail      = regexp.MustCompile(`Key \(([^)]+)\)=`)
	sqliteUniqueCols = regexp.MustCompile(`UNIQUE constraint failed: ([\w.]+)`)
)

// UniqueViolation reports whether err is a unique-constraint violation and,
// when the driver exposes it, the offending column name.
func UniqueViolation(err error) (column string, ok bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		if m := pgKeyDetail.FindStringSubmatch(pgErr.Detail); m != nil {
			return strings.TrimSpace(strings.Split(m[1], ",")[0]), true
		}
		return columnFromConstraint(pgErr.TableName, pgErr.ConstraintName), true
	}

	msg := err.Error()
	if m := sqliteUniqueCols.FindStringSubmatch(msg); m != nil {
		col := m[1]
		if i := strings.LastIndexByte(col, '.'); i >= 0 {
			col = col[i+1:]
		}
		return col, true
	}
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, pgUniqueViolation) {
		return "", true
	}
	return "", false
}

// columnFromConstraint recovers the column from GORM-style index names such
// as idx_users_email or uni_users_email.
func columnFromConstraint(table, constraint string) string {
	for _, prefix := range []string{"idx_" + table + "_", "uni_" + table + "_", table + "_"} {
		if table != "" && strings.HasPrefix(constraint, prefix) {
			return strings.TrimSuffix(strings.TrimPrefix(constraint, prefix), "_key")
		}
	}
	return ""
}

// IsMissingTable reports errors raised when querying a table that does not exist yet.
func IsMissingTable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}
