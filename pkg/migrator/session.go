package migrator

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/pthm/schemaward/pkg/catalog"
	"github.com/pthm/schemaward/pkg/schema"
)

// optionalSavepoint is the savepoint wrapped around tolerant statements.
const optionalSavepoint = "schemaward_optional"

// Session is handed to unit code. It binds the unit's transaction to a
// catalog prober, the engine capabilities and a logger scoped to the unit.
type Session struct {
	ex       Execer
	cat      *catalog.Catalog
	caps     catalog.Capabilities
	log      *zap.Logger
	readOnly bool
}

var _ schema.Env = (*Session)(nil)

func newSession(ex Execer, caps catalog.Capabilities, log *zap.Logger, readOnly bool) (*Session, error) {
	cat, err := catalog.New(caps.Dialect, ex)
	if err != nil {
		return nil, err
	}
	return &Session{ex: ex, cat: cat, caps: caps, log: log, readOnly: readOnly}, nil
}

// Exec runs a statement in the unit's transaction.
func (s *Session) Exec(ctx context.Context, query string, args ...any) error {
	if s.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, query)
	}
	s.log.Debug("exec", zap.String("sql", query))
	if _, err := s.ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing %q: %w", query, err)
	}
	return nil
}

// ExecOptional runs a statement that may reference an object which is
// already gone. The statement runs under a savepoint so that a failure does
// not abort the unit's transaction; missing-object errors are then ignored
// and every other error is returned.
func (s *Session) ExecOptional(ctx context.Context, query string) error {
	if s.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, query)
	}
	if _, err := s.ex.ExecContext(ctx, "SAVEPOINT "+optionalSavepoint); err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}

	s.log.Debug("exec optional", zap.String("sql", query))
	_, execErr := s.ex.ExecContext(ctx, query)
	if execErr != nil {
		if _, err := s.ex.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+optionalSavepoint); err != nil {
			return fmt.Errorf("rolling back savepoint after %q: %w", query, err)
		}
	}
	if _, err := s.ex.ExecContext(ctx, "RELEASE SAVEPOINT "+optionalSavepoint); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}

	if execErr != nil {
		if catalog.IsMissingObject(execErr) {
			s.log.Debug("optional statement was a no-op", zap.String("sql", query), zap.Error(execErr))
			return nil
		}
		return fmt.Errorf("executing %q: %w", query, execErr)
	}
	return nil
}

// Apply runs transitions against the session. See schema.Apply.
func (s *Session) Apply(ctx context.Context, transitions ...schema.Transition) error {
	return schema.Apply(ctx, s, transitions...)
}

// QueryContext runs a query in the unit's transaction.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.ex.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query in the unit's transaction.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.ex.QueryRowContext(ctx, query, args...)
}

// Catalog returns a prober that sees the unit's uncommitted DDL.
func (s *Session) Catalog() catalog.Prober {
	return s.cat
}

// Capabilities returns what the target engine supports.
func (s *Session) Capabilities() catalog.Capabilities {
	return s.caps
}

// Dialect returns the target dialect.
func (s *Session) Dialect() catalog.Dialect {
	return s.caps.Dialect
}

// Logger returns the unit-scoped logger.
func (s *Session) Logger() *zap.Logger {
	return s.log
}
