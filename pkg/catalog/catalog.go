// Package catalog answers read-only questions about the current shape of a
// relational schema: does this table, column, index or constraint exist, and
// what does it look like.
//
// Probes never mutate state, so they are safe to issue repeatedly and from
// concurrent migration runs on different replicas. Errors from the engine are
// always returned to the caller; a failed probe is never treated as "absent".
//
// Example usage:
//
//	cat, err := catalog.New(catalog.Postgres, db)
//	if err != nil {
//		return err
//	}
//	ok, err := cat.ColumnExists(ctx, "product_orders", "tenantId")
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Querier is the read-only subset of *sql.DB, *sql.Tx and *sql.Conn used by
// probes.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Column describes an existing table column.
type Column struct {
	Name     string
	DataType string
	Nullable bool

	// Default is the catalog's default expression; empty when HasDefault is false.
	Default    string
	HasDefault bool

	// MaxLength is the declared character length, 0 when not applicable.
	MaxLength int
}

// Index describes an existing index.
type Index struct {
	Name       string
	Table      string
	Definition string
	Unique     bool
}

// Prober is the read-only view of a schema used to branch DDL application.
type Prober interface {
	Dialect() Dialect
	TableExists(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]Column, error)
	Column(ctx context.Context, table, column string) (Column, bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	ColumnDefault(ctx context.Context, table, column string) (string, bool, error)
	IndexExists(ctx context.Context, name string) (bool, error)
	Index(ctx context.Context, name string) (Index, bool, error)
	Indexes(ctx context.Context, table string) ([]Index, error)
	ConstraintExists(ctx context.Context, table, name string) (bool, error)
}

// backend holds the engine-specific catalog queries.
type backend interface {
	tableExists(ctx context.Context, table string) (bool, error)
	columns(ctx context.Context, table string) ([]Column, error)
	index(ctx context.Context, name string) (Index, bool, error)
	indexes(ctx context.Context, table string) ([]Index, error)
	constraintExists(ctx context.Context, table, name string) (bool, error)
}

// Catalog implements Prober for one dialect over one Querier.
type Catalog struct {
	dialect Dialect
	b       backend
}

var _ Prober = (*Catalog)(nil)

// New returns a Catalog probing q with the queries of dialect d.
// Pass the migration transaction as q to see uncommitted DDL.
func New(d Dialect, q Querier) (*Catalog, error) {
	switch d {
	case Postgres:
		return &Catalog{dialect: d, b: &postgresBackend{q: q, sb: d.Builder()}}, nil
	case SQLite:
		return &Catalog{dialect: d, b: &sqliteBackend{q: q, sb: d.Builder()}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, d)
	}
}

// Dialect returns the dialect the catalog speaks.
func (c *Catalog) Dialect() Dialect {
	return c.dialect
}

// TableExists reports whether a base table named table exists.
func (c *Catalog) TableExists(ctx context.Context, table string) (bool, error) {
	ok, err := c.b.tableExists(ctx, table)
	if err != nil {
		return false, fmt.Errorf("probing table %s: %w", table, err)
	}
	return ok, nil
}

// Columns returns the columns of table in ordinal order. A missing table
// yields no columns.
func (c *Catalog) Columns(ctx context.Context, table string) ([]Column, error) {
	cols, err := c.b.columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("probing columns of %s: %w", table, err)
	}
	return cols, nil
}

// Column returns a single column. Column names are compared exactly, so
// "tenantId" and "tenant_id" are different columns.
func (c *Catalog) Column(ctx context.Context, table, column string) (Column, bool, error) {
	cols, err := c.Columns(ctx, table)
	if err != nil {
		return Column{}, false, err
	}
	for _, col := range cols {
		if col.Name == column {
			return col, true, nil
		}
	}
	return Column{}, false, nil
}

// ColumnExists reports whether table has a column named column.
func (c *Catalog) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	_, ok, err := c.Column(ctx, table, column)
	return ok, err
}

// ColumnDefault returns the catalog default expression of a column. The
// boolean is false when the column has no default or does not exist.
func (c *Catalog) ColumnDefault(ctx context.Context, table, column string) (string, bool, error) {
	col, ok, err := c.Column(ctx, table, column)
	if err != nil || !ok {
		return "", false, err
	}
	return col.Default, col.HasDefault, nil
}

// IndexExists reports whether an index named name exists.
func (c *Catalog) IndexExists(ctx context.Context, name string) (bool, error) {
	_, ok, err := c.Index(ctx, name)
	return ok, err
}

// Index returns the index named name.
func (c *Catalog) Index(ctx context.Context, name string) (Index, bool, error) {
	idx, ok, err := c.b.index(ctx, name)
	if err != nil {
		return Index{}, false, fmt.Errorf("probing index %s: %w", name, err)
	}
	return idx, ok, nil
}

// Indexes returns every explicitly created index on table.
func (c *Catalog) Indexes(ctx context.Context, table string) ([]Index, error) {
	idxs, err := c.b.indexes(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("probing indexes of %s: %w", table, err)
	}
	return idxs, nil
}

// ConstraintExists reports whether table carries a constraint named name.
func (c *Catalog) ConstraintExists(ctx context.Context, table, name string) (bool, error) {
	ok, err := c.b.constraintExists(ctx, table, name)
	if err != nil {
		return false, fmt.Errorf("probing constraint %s on %s: %w", name, table, err)
	}
	return ok, nil
}

// Columns returns the key parts of the index definition in order, with
// identifier quotes removed. Expression parts are returned verbatim.
func (i Index) Columns() []string {
	def := i.Definition
	on := strings.Index(strings.ToUpper(def), " ON ")
	if on < 0 {
		return nil
	}
	open := strings.IndexByte(def[on:], '(')
	if open < 0 {
		return nil
	}
	open += on

	var (
		parts []string
		depth int
		start = open + 1
	)
	for pos := open; pos < len(def); pos++ {
		switch def[pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return append(parts, unquoteIdent(def[start:pos]))
			}
		case ',':
			if depth == 1 {
				parts = append(parts, unquoteIdent(def[start:pos]))
				start = pos + 1
			}
		}
	}
	return nil
}

func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

// isUniqueDefinition reports whether an index definition creates a unique index.
func isUniqueDefinition(def string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(def)), "CREATE UNIQUE INDEX")
}
