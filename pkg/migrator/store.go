package migrator

import (
	"context"
	"fmt"
	"time"

	"github.com/pthm/schemaward/pkg/catalog"
	"github.com/pthm/schemaward/pkg/schema"
)

// DefaultTable is the default name of the tracking table.
const DefaultTable = "schema_migrations"

// Record is one row of the tracking table.
type Record struct {
	Version   Version
	Name      string
	AppliedAt time.Time
}

// Store reads and writes the tracking table. Every method takes the
// executor to use so that a unit's record commits in the unit's transaction.
type Store struct {
	table   string
	dialect catalog.Dialect
}

// NewStore returns a store for the named tracking table.
func NewStore(table string, d catalog.Dialect) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{table: table, dialect: d}
}

// Table returns the tracking table name.
func (s *Store) Table() string {
	return s.table
}

func (s *Store) spec() schema.TableSpec {
	return schema.TableSpec{
		Name: s.table,
		Columns: []schema.ColumnSpec{
			{Name: "version", Type: schema.BigInt, PrimaryKey: true},
			{Name: "name", Type: schema.Text},
			{Name: "applied_at", Type: schema.Timestamp},
		},
	}
}

// Ensure creates the tracking table if it does not exist.
func (s *Store) Ensure(ctx context.Context, ex Execer) error {
	ddl := s.spec().CreateSQL(catalog.Capabilities{Dialect: s.dialect})
	if _, err := ex.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating %s: %w", s.table, err)
	}
	return nil
}

// Exists reports whether the tracking table exists.
func (s *Store) Exists(ctx context.Context, ex Execer) (bool, error) {
	cat, err := catalog.New(s.dialect, ex)
	if err != nil {
		return false, err
	}
	return cat.TableExists(ctx, s.table)
}

// Applied returns every recorded version in ascending order. A missing
// tracking table means nothing was applied.
func (s *Store) Applied(ctx context.Context, ex Execer) ([]Record, error) {
	ok, err := s.Exists(ctx, ex)
	if err != nil || !ok {
		return nil, err
	}

	query, args, err := s.dialect.Builder().
		Select("version", "name", "applied_at").
		From(catalog.Quote(s.table)).
		OrderBy("version").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			r       Record
			version int64
		)
		if err := rows.Scan(&version, &r.Name, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.table, err)
		}
		r.Version = Version(version)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Record marks u as applied at the given time.
func (s *Store) Record(ctx context.Context, ex Execer, u *Unit, at time.Time) error {
	query, args, err := s.dialect.Builder().
		Insert(catalog.Quote(s.table)).
		Columns("version", "name", "applied_at").
		Values(int64(u.Version), u.Name, at.UTC()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("recording %s: %w", u.ID(), err)
	}
	return nil
}

// Remove forgets that version v was applied.
func (s *Store) Remove(ctx context.Context, ex Execer, v Version) error {
	query, args, err := s.dialect.Builder().
		Delete(catalog.Quote(s.table)).
		Where("version = ?", int64(v)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("removing %s from %s: %w", v, s.table, err)
	}
	return nil
}
