package migrator

import (
	"context"
	"database/sql"
)

// Execer is what the tracking store and sessions run statements through.
// A unit runs against the *sql.Tx of its own transaction; status and plan
// read through the *sql.DB. The PostgreSQL lock pins a *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Execer = (*sql.DB)(nil)
	_ Execer = (*sql.Tx)(nil)
	_ Execer = (*sql.Conn)(nil)
)
