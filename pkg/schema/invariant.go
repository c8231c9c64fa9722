package schema

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pthm/schemaward/pkg/catalog"
)

// CheckFunc inspects the schema. It returns nil when the invariant holds,
// an error wrapping ErrInvariantViolated when it does not, and an error
// wrapping ErrUnsupported when the engine cannot enforce it.
type CheckFunc func(ctx context.Context, p catalog.Prober, caps catalog.Capabilities) error

// Invariant is a named statement about the end state of the schema.
type Invariant struct {
	Name        string
	Description string
	Check       CheckFunc
}

func violated(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvariantViolated)
}

// NotNullInvariant holds when table.column exists and rejects NULL.
func NotNullInvariant(table, column string) Invariant {
	return Invariant{
		Name:        fmt.Sprintf("%s.%s is NOT NULL", table, column),
		Description: fmt.Sprintf("every %s row carries %s", table, column),
		Check: func(ctx context.Context, p catalog.Prober, caps catalog.Capabilities) error {
			col, ok, err := p.Column(ctx, table, column)
			switch {
			case err != nil:
				return err
			case !ok:
				return violated("column %s.%s does not exist", table, column)
			case !col.Nullable:
				return nil
			case !caps.AlterColumn:
				return fmt.Errorf("%s.%s is nullable, %s cannot alter it: %w", table, column, caps, ErrUnsupported)
			default:
				return violated("column %s.%s is nullable", table, column)
			}
		},
	}
}

// UUIDDefaultInvariant holds when table.column has a UUID-generating default.
func UUIDDefaultInvariant(table, column string) Invariant {
	return Invariant{
		Name:        fmt.Sprintf("%s.%s generates UUIDs", table, column),
		Description: fmt.Sprintf("inserts into %s without %s get a fresh UUID", table, column),
		Check: func(ctx context.Context, p catalog.Prober, caps catalog.Capabilities) error {
			def, ok, err := p.ColumnDefault(ctx, table, column)
			switch {
			case err != nil:
				return err
			case ok && HasUUIDDefault(def):
				return nil
			case !caps.UUIDDefaults() || !caps.AlterColumn:
				return fmt.Errorf("%s.%s has no UUID default, %s cannot generate one: %w", table, column, caps, ErrUnsupported)
			case !ok:
				return violated("column %s.%s has no default", table, column)
			default:
				return violated("column %s.%s defaults to %s", table, column, def)
			}
		},
	}
}

// IndexInvariant holds when idx exists with the same uniqueness and key
// parts in the same order.
func IndexInvariant(idx IndexSpec) Invariant {
	scope := strings.Join(idx.KeyParts(), ", ")
	kind := "index"
	if idx.Unique {
		kind = "unique index"
	}
	return Invariant{
		Name:        fmt.Sprintf("%s %s on (%s)", kind, idx.Name, scope),
		Description: fmt.Sprintf("%s enforces %s over (%s)", idx.Table, kind, scope),
		Check: func(ctx context.Context, p catalog.Prober, caps catalog.Capabilities) error {
			got, ok, err := p.Index(ctx, idx.Name)
			switch {
			case err != nil:
				return err
			case !ok:
				if unsupported := idx.Supported(caps); unsupported != nil {
					return unsupported
				}
				return violated("index %s does not exist", idx.Name)
			case got.Table != idx.Table:
				return violated("index %s is on %s, want %s", idx.Name, got.Table, idx.Table)
			case got.Unique != idx.Unique:
				return violated("index %s unique=%t, want %t", idx.Name, got.Unique, idx.Unique)
			}
			if parts := got.Columns(); !slices.Equal(parts, idx.KeyParts()) {
				return violated("index %s covers (%s), want (%s)", idx.Name, strings.Join(parts, ", "), scope)
			}
			return nil
		},
	}
}

// IndexAbsentInvariant holds when no index named name exists.
func IndexAbsentInvariant(name, reason string) Invariant {
	return Invariant{
		Name:        fmt.Sprintf("index %s is absent", name),
		Description: reason,
		Check: func(ctx context.Context, p catalog.Prober, _ catalog.Capabilities) error {
			ok, err := p.IndexExists(ctx, name)
			if err != nil {
				return err
			}
			if ok {
				return violated("superseded index %s still exists", name)
			}
			return nil
		},
	}
}

// CheckAll runs every invariant and returns the outcome of each keyed by
// invariant name. Probe errors abort the run.
func CheckAll(ctx context.Context, p catalog.Prober, caps catalog.Capabilities, invariants []Invariant) (map[string]error, error) {
	out := make(map[string]error, len(invariants))
	for _, inv := range invariants {
		err := inv.Check(ctx, p, caps)
		if err != nil && !IsInvariantViolatedErr(err) && !IsUnsupportedErr(err) {
			return nil, fmt.Errorf("checking %q: %w", inv.Name, err)
		}
		out[inv.Name] = err
	}
	return out, nil
}
