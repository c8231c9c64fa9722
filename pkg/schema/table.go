package schema

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pthm/schemaward/pkg/catalog"
)

func tableState(ctx context.Context, env Env, table string) (State, error) {
	ok, err := env.Catalog().TableExists(ctx, table)
	if err != nil {
		return Absent, err
	}
	if ok {
		return Target, nil
	}
	return Absent, nil
}

// EnsureTable creates the table when it does not exist. An existing table
// is left alone whatever its columns; follow with EnsureColumn for each
// column that may be missing.
func EnsureTable(spec TableSpec) Transition {
	return Transition{
		Object: "table " + spec.Name,
		Assess: func(ctx context.Context, env Env) (State, error) {
			return tableState(ctx, env, spec.Name)
		},
		OnAbsent: func(ctx context.Context, env Env) error {
			return env.Exec(ctx, spec.CreateSQL(env.Capabilities()))
		},
	}
}

// RescueTable is EnsureTable for a table an earlier unit should already
// have created. Creating it here is logged as a warning because it means
// the environment's history diverged.
func RescueTable(spec TableSpec) Transition {
	t := EnsureTable(spec)
	create := t.OnAbsent
	t.OnAbsent = func(ctx context.Context, env Env) error {
		env.Logger().Warn("rescue-creating missing table", zap.String("table", spec.Name))
		return create(ctx, env)
	}
	return t
}

// DropTable drops the table if it exists. Only reversible units use it.
func DropTable(table string) Transition {
	return Transition{
		Object: "table " + table + " (drop)",
		Assess: func(ctx context.Context, env Env) (State, error) {
			state, err := tableState(ctx, env, table)
			if err != nil || state == Absent {
				return Target, err
			}
			return Partial, nil
		},
		OnPartial: func(ctx context.Context, env Env) error {
			return env.Exec(ctx, "DROP TABLE IF EXISTS "+catalog.Quote(table))
		},
	}
}

// EnsureColumn adds the column when it is missing. A column that already
// exists is never altered, whatever its current definition. The column is
// reported Absent when its table is missing, so the add surfaces the error.
func EnsureColumn(table string, col ColumnSpec) Transition {
	return Transition{
		Object: fmt.Sprintf("column %s.%s", table, col.Name),
		Assess: func(ctx context.Context, env Env) (State, error) {
			ok, err := env.Catalog().ColumnExists(ctx, table, col.Name)
			if err != nil {
				return Absent, err
			}
			if ok {
				return Target, nil
			}
			return Absent, nil
		},
		OnAbsent: func(ctx context.Context, env Env) error {
			return addColumn(ctx, env, table, col)
		},
	}
}

func addColumn(ctx context.Context, env Env, table string, col ColumnSpec) error {
	caps := env.Capabilities()
	ifNotExists := ""
	if caps.AddColumnIfNotExists {
		ifNotExists = "IF NOT EXISTS "
	}
	return env.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s%s",
		catalog.Quote(table), ifNotExists, col.Definition(caps)))
}

// DropColumn drops the column if it exists. Only reversible units use it.
func DropColumn(table, column string) Transition {
	return Transition{
		Object: fmt.Sprintf("column %s.%s (drop)", table, column),
		Assess: func(ctx context.Context, env Env) (State, error) {
			ok, err := env.Catalog().ColumnExists(ctx, table, column)
			if err != nil || !ok {
				return Target, err
			}
			return Partial, nil
		},
		OnPartial: func(ctx context.Context, env Env) error {
			return env.Exec(ctx, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
				catalog.Quote(table), catalog.Quote(column)))
		},
	}
}

// EnsureNotNull sets NOT NULL on a nullable column. Existing NULLs make the
// statement fail, so backfill first. Engines without ALTER COLUMN skip it.
func EnsureNotNull(table, column string) Transition {
	object := fmt.Sprintf("not null %s.%s", table, column)
	return Transition{
		Object: object,
		Assess: func(ctx context.Context, env Env) (State, error) {
			col, ok, err := env.Catalog().Column(ctx, table, column)
			switch {
			case err != nil:
				return Absent, err
			case !ok:
				return Absent, nil
			case col.Nullable:
				return Partial, nil
			default:
				return Target, nil
			}
		},
		OnAbsent: func(context.Context, Env) error {
			return fmt.Errorf("%s.%s: %w", table, column, ErrMissingColumn)
		},
		OnPartial: func(ctx context.Context, env Env) error {
			if !env.Capabilities().AlterColumn {
				return skip(env, object, ErrUnsupported)
			}
			return env.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL",
				catalog.Quote(table), catalog.Quote(column)))
		},
	}
}

// RenameColumn moves a column from a legacy name to a new one:
//
//	neither exists      -> Absent:  add the new column from spec
//	only legacy exists  -> Partial: rename legacy to new
//	both exist          -> Partial while rows still need copying from legacy
//	only new exists     -> Target
//
// When both exist the legacy column is kept; values are copied only into
// rows where the new column is NULL.
func RenameColumn(table, from, to string, spec ColumnSpec) Transition {
	spec.Name = to
	return Transition{
		Object: fmt.Sprintf("column %s.%s (was %s)", table, to, from),
		Assess: func(ctx context.Context, env Env) (State, error) {
			hasFrom, hasTo, err := renameColumns(ctx, env, table, from, to)
			switch {
			case err != nil:
				return Absent, err
			case !hasFrom && !hasTo:
				return Absent, nil
			case hasFrom && !hasTo:
				return Partial, nil
			case !hasFrom:
				return Target, nil
			}
			n, err := count(ctx, env, uncopiedQuery(table, from, to))
			if err != nil {
				return Absent, err
			}
			if n > 0 {
				return Partial, nil
			}
			return Target, nil
		},
		OnAbsent: func(ctx context.Context, env Env) error {
			return addColumn(ctx, env, table, spec)
		},
		OnPartial: func(ctx context.Context, env Env) error {
			_, hasTo, err := renameColumns(ctx, env, table, from, to)
			if err != nil {
				return err
			}
			if !hasTo {
				if env.Capabilities().RenameColumn {
					return env.Exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
						catalog.Quote(table), catalog.Quote(from), catalog.Quote(to)))
				}
				if err := addColumn(ctx, env, table, spec); err != nil {
					return err
				}
			}
			return env.Exec(ctx, fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL AND %s IS NOT NULL",
				catalog.Quote(table), catalog.Quote(to), catalog.Quote(from), catalog.Quote(to), catalog.Quote(from)))
		},
	}
}

func renameColumns(ctx context.Context, env Env, table, from, to string) (hasFrom, hasTo bool, err error) {
	cols, err := env.Catalog().Columns(ctx, table)
	if err != nil {
		return false, false, err
	}
	for _, c := range cols {
		switch c.Name {
		case from:
			hasFrom = true
		case to:
			hasTo = true
		}
	}
	return hasFrom, hasTo, nil
}

func uncopiedQuery(table, from, to string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL AND %s IS NOT NULL",
		catalog.Quote(table), catalog.Quote(to), catalog.Quote(from))
}

// EnsureCheck adds a named CHECK constraint. SQLite has no ADD CONSTRAINT;
// tables created there carry their checks inline from the TableSpec.
func EnsureCheck(table string, check CheckSpec) Transition {
	object := fmt.Sprintf("check %s on %s", check.Name, table)
	return Transition{
		Object: object,
		Assess: func(ctx context.Context, env Env) (State, error) {
			state, err := tableState(ctx, env, table)
			if err != nil || state == Absent {
				return Absent, err
			}
			ok, err := env.Catalog().ConstraintExists(ctx, table, check.Name)
			if err != nil {
				return Absent, err
			}
			if ok {
				return Target, nil
			}
			return Partial, nil
		},
		OnAbsent: func(context.Context, Env) error {
			return fmt.Errorf("%s: %w", table, ErrMissingTable)
		},
		OnPartial: func(ctx context.Context, env Env) error {
			if !env.Capabilities().AddConstraint {
				return skip(env, object, ErrUnsupported)
			}
			return env.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ADD %s", catalog.Quote(table), check.Definition()))
		},
	}
}

// DropCheck drops a named CHECK constraint if present.
func DropCheck(table, name string) Transition {
	object := fmt.Sprintf("check %s on %s (drop)", name, table)
	return Transition{
		Object: object,
		Assess: func(ctx context.Context, env Env) (State, error) {
			ok, err := env.Catalog().ConstraintExists(ctx, table, name)
			if err != nil || !ok {
				return Target, err
			}
			return Partial, nil
		},
		OnPartial: func(ctx context.Context, env Env) error {
			if !env.Capabilities().AddConstraint {
				return skip(env, object, ErrUnsupported)
			}
			return env.ExecOptional(ctx, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
				catalog.Quote(table), catalog.Quote(name)))
		},
	}
}

// uuidGenerators are the default expressions recognised as generating UUIDs.
var uuidGenerators = []string{"gen_random_uuid()", "uuid_generate_v4()"}

// HasUUIDDefault reports whether a catalog default expression generates UUIDs.
func HasUUIDDefault(expr string) bool {
	expr = strings.ToLower(expr)
	for _, g := range uuidGenerators {
		if strings.Contains(expr, g) {
			return true
		}
	}
	return false
}

// EnsureUUIDDefault (re)installs gen_random_uuid() as the default of an id
// column whose catalog default does not generate UUIDs. Existing rows are
// not touched. PostgreSQL before 13 gets the pgcrypto extension first.
func EnsureUUIDDefault(table, column string) Transition {
	object := fmt.Sprintf("uuid default %s.%s", table, column)
	return Transition{
		Object: object,
		Assess: func(ctx context.Context, env Env) (State, error) {
			col, ok, err := env.Catalog().Column(ctx, table, column)
			switch {
			case err != nil:
				return Absent, err
			case !ok:
				return Absent, nil
			case col.HasDefault && HasUUIDDefault(col.Default):
				return Target, nil
			default:
				return Partial, nil
			}
		},
		OnAbsent: func(context.Context, Env) error {
			return fmt.Errorf("%s.%s: %w", table, column, ErrMissingColumn)
		},
		OnPartial: func(ctx context.Context, env Env) error {
			caps := env.Capabilities()
			if !caps.AlterColumn || !caps.UUIDDefaults() {
				return skip(env, object, ErrUnsupported)
			}
			if caps.UUIDExtension {
				if err := env.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS pgcrypto"); err != nil {
					return err
				}
			}
			return env.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT gen_random_uuid()",
				catalog.Quote(table), catalog.Quote(column)))
		},
	}
}
