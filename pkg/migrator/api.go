package migrator

import (
	"context"
	"database/sql"
)

// Migrate applies every pending unit of seq to db in one locked run.
// This is the recommended high-level API for applications that migrate on
// startup.
//
// The function is idempotent - safe to call on every application startup.
// Units already recorded in the tracking table are skipped, and each unit
// is itself safe to re-run against a schema in any state.
//
// Example usage on application startup:
//
//	if err := migrator.Migrate(ctx, db, migrations.Sequence(),
//		migrator.WithLogger(log)); err != nil {
//		log.Fatal("migration failed", zap.Error(err))
//	}
//
// Use a Runner directly for dry runs, reverts, status and plans.
func Migrate(ctx context.Context, db *sql.DB, seq *Sequence, opts ...Option) error {
	_, err := NewRunner(db, seq, opts...).Up(ctx, UpOptions{})
	return err
}

// MigrateTo applies pending units up to and including target.
func MigrateTo(ctx context.Context, db *sql.DB, seq *Sequence, target Version, opts ...Option) error {
	_, err := NewRunner(db, seq, opts...).Up(ctx, UpOptions{Target: target})
	return err
}

// GetStatus returns the tracking state of every unit in seq.
func GetStatus(ctx context.Context, db *sql.DB, seq *Sequence, opts ...Option) (*Status, error) {
	return NewRunner(db, seq, opts...).Status(ctx)
}
