package schema

import (
	"context"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/pthm/schemaward/pkg/catalog"
)

// Backfill is a declarative data fix: UPDATE Table SET Column = Expr WHERE
// Where. Where must exclude rows that are already fixed, otherwise the
// backfill never reaches Target. Rows are updated in one statement.
type Backfill struct {
	Table  string
	Column string
	// Expr is the SQL expression assigned to Column.
	Expr string
	// Where selects the rows that still need the value.
	Where string
	// Requires lists further columns the expressions read, typically a
	// legacy column that only some environments have.
	Requires []string
}

// Transition returns the backfill as a transition. A missing table or
// column is reported Absent and skipped: with no column there is no legacy
// data to carry over.
func (b Backfill) Transition() Transition {
	object := fmt.Sprintf("backfill %s.%s", b.Table, b.Column)
	return Transition{
		Object: object,
		Assess: func(ctx context.Context, env Env) (State, error) {
			ok, err := b.columnsPresent(ctx, env)
			if err != nil || !ok {
				return Absent, err
			}
			query, args, err := b.countQuery(env).ToSql()
			if err != nil {
				return Absent, err
			}
			n, err := count(ctx, env, query, args...)
			if err != nil {
				return Absent, err
			}
			if n > 0 {
				return Partial, nil
			}
			return Target, nil
		},
		OnPartial: func(ctx context.Context, env Env) error {
			query, args, err := env.Catalog().Dialect().Builder().
				Update(catalog.Quote(b.Table)).
				Set(catalog.Quote(b.Column), sq.Expr(b.Expr)).
				Where(b.Where).
				ToSql()
			if err != nil {
				return err
			}
			env.Logger().Info("backfilling", zap.String("table", b.Table), zap.String("column", b.Column))
			return env.Exec(ctx, query, args...)
		},
	}
}

func (b Backfill) countQuery(env Env) sq.SelectBuilder {
	return env.Catalog().Dialect().Builder().
		Select("COUNT(*)").
		From(catalog.Quote(b.Table)).
		Where(b.Where)
}

func (b Backfill) columnsPresent(ctx context.Context, env Env) (bool, error) {
	cols, err := env.Catalog().Columns(ctx, b.Table)
	if err != nil {
		return false, err
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c.Name] = true
	}
	for _, name := range append([]string{b.Column}, b.Requires...) {
		if !have[name] {
			env.Logger().Debug("backfill source missing", zap.String("table", b.Table), zap.String("column", name))
			return false, nil
		}
	}
	return true, nil
}

// EnsureRow inserts a seed row identified by Key = KeyValue when no such
// row exists. An existing row is never overwritten. A missing table assesses
// Absent; applying then fails with ErrMissingTable.
func EnsureRow(table, key string, keyValue any, values map[string]any) Transition {
	return Transition{
		Object: fmt.Sprintf("row %s[%s=%v]", table, key, keyValue),
		Assess: func(ctx context.Context, env Env) (State, error) {
			state, err := tableState(ctx, env, table)
			if err != nil || state == Absent {
				return Absent, err
			}
			query, args, err := env.Catalog().Dialect().Builder().
				Select("COUNT(*)").
				From(catalog.Quote(table)).
				Where(sq.Eq{catalog.Quote(key): keyValue}).
				ToSql()
			if err != nil {
				return Absent, err
			}
			n, err := count(ctx, env, query, args...)
			if err != nil {
				return Absent, err
			}
			if n > 0 {
				return Target, nil
			}
			return Absent, nil
		},
		OnAbsent: func(ctx context.Context, env Env) error {
			ok, err := env.Catalog().TableExists(ctx, table)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", table, ErrMissingTable)
			}
			cols := []string{key}
			for c := range values {
				cols = append(cols, c)
			}
			sort.Strings(cols[1:])

			vals := make([]any, len(cols))
			vals[0] = keyValue
			for i, c := range cols[1:] {
				vals[i+1] = values[c]
			}

			query, args, err := env.Catalog().Dialect().Builder().
				Insert(catalog.Quote(table)).
				Columns(catalog.QuoteAll(cols)...).
				Values(vals...).
				Suffix("ON CONFLICT DO NOTHING").
				ToSql()
			if err != nil {
				return err
			}
			return env.Exec(ctx, query, args...)
		},
	}
}
