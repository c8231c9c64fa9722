package catalog

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrUnsupportedDialect is returned for engines schemaward cannot probe.
	ErrUnsupportedDialect = errors.New("schemaward/catalog: unsupported dialect")

	// ErrUnknownEngine is returned when capability detection cannot identify
	// the engine behind a connection.
	ErrUnknownEngine = errors.New("schemaward/catalog: unknown database engine")
)

// IsUnsupportedDialectErr returns true if err is or wraps ErrUnsupportedDialect.
func IsUnsupportedDialectErr(err error) bool {
	return errors.Is(err, ErrUnsupportedDialect)
}

// PostgreSQL error codes that mean "the object is not there".
const (
	pgUndefinedObject = "42704" // undefined_object
	pgUndefinedTable  = "42P01" // undefined_table
	pgUndefinedColumn = "42703" // undefined_column
)

// IsMissingObject reports whether err is an engine error saying the
// referenced table, column, index or constraint does not exist. Both the
// lib/pq and pgx error types are recognised, as is SQLite's "no such" family.
func IsMissingObject(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return isMissingCode(string(pqErr.Code))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isMissingCode(pgErr.Code)
	}

	msg := err.Error()
	return strings.Contains(msg, "no such index") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "no such column")
}

func isMissingCode(code string) bool {
	switch code {
	case pgUndefinedObject, pgUndefinedTable, pgUndefinedColumn:
		return true
	default:
		return false
	}
}
