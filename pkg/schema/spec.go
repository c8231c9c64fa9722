package schema

import (
	"fmt"
	"strings"

	"github.com/pthm/schemaward/pkg/catalog"
)

// Reference is a foreign key from a column to another table.
type Reference struct {
	Table    string
	Column   string
	OnDelete string
}

// ColumnSpec is the intended shape of one column.
type ColumnSpec struct {
	Name       string
	Type       Type
	Nullable   bool
	Default    Default
	PrimaryKey bool
	Unique     bool
	References *Reference
}

// Definition renders the column as it appears in CREATE TABLE or
// ALTER TABLE ... ADD COLUMN.
func (c ColumnSpec) Definition(caps catalog.Capabilities) string {
	var b strings.Builder
	b.WriteString(catalog.Quote(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type.SQL(caps.Dialect))
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	} else if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Unique && !c.PrimaryKey {
		b.WriteString(" UNIQUE")
	}
	if def, ok := c.Default.SQL(caps); ok {
		b.WriteString(" DEFAULT ")
		b.WriteString(def)
	}
	if ref := c.References; ref != nil {
		col := ref.Column
		if col == "" {
			col = "id"
		}
		fmt.Fprintf(&b, " REFERENCES %s (%s)", catalog.Quote(ref.Table), catalog.Quote(col))
		if ref.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(ref.OnDelete)
		}
	}
	return b.String()
}

// CheckSpec is a named CHECK constraint. Expr must quote camelCase
// identifiers, otherwise PostgreSQL folds them to lower case.
type CheckSpec struct {
	Name string
	Expr string
}

// Definition renders the constraint clause.
func (c CheckSpec) Definition() string {
	return fmt.Sprintf("CONSTRAINT %s CHECK (%s)", catalog.Quote(c.Name), c.Expr)
}

// TableSpec is the shape a table is created with.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	Checks  []CheckSpec
}

// Column returns the spec of the named column.
func (t TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// CreateSQL renders an idempotent CREATE TABLE statement.
func (t TableSpec) CreateSQL(caps catalog.Capabilities) string {
	parts := make([]string, 0, len(t.Columns)+len(t.Checks))
	for _, c := range t.Columns {
		parts = append(parts, c.Definition(caps))
	}
	for _, c := range t.Checks {
		parts = append(parts, c.Definition())
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		catalog.Quote(t.Name), strings.Join(parts, ",\n    "))
}

// IndexSpec is the intended shape of an index. Columns are quoted when
// rendered; Expressions are emitted verbatim after them.
type IndexSpec struct {
	Name        string
	Table       string
	Columns     []string
	Expressions []string
	Unique      bool
	// Where makes the index partial.
	Where string
}

// Supported reports whether the engine can build the index.
func (i IndexSpec) Supported(caps catalog.Capabilities) error {
	if i.Where != "" && !caps.PartialIndexes {
		return fmt.Errorf("partial index %s on %s: %w", i.Name, caps, ErrUnsupported)
	}
	if len(i.Expressions) > 0 && !caps.ExpressionIndexes {
		return fmt.Errorf("expression index %s on %s: %w", i.Name, caps, ErrUnsupported)
	}
	return nil
}

// KeyParts returns the index key as Index.Columns reports it.
func (i IndexSpec) KeyParts() []string {
	parts := make([]string, 0, len(i.Columns)+len(i.Expressions))
	parts = append(parts, i.Columns...)
	return append(parts, i.Expressions...)
}

// CreateSQL renders an idempotent CREATE INDEX statement.
func (i IndexSpec) CreateSQL() string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if i.Unique {
		b.WriteString("UNIQUE ")
	}
	keys := append(catalog.QuoteAll(i.Columns), i.Expressions...)
	fmt.Fprintf(&b, "INDEX IF NOT EXISTS %s ON %s (%s)",
		catalog.Quote(i.Name), catalog.Quote(i.Table), strings.Join(keys, ", "))
	if i.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(i.Where)
	}
	return b.String()
}

// DropIndexSQL renders a tolerant DROP INDEX statement.
func DropIndexSQL(name string) string {
	return "DROP INDEX IF EXISTS " + catalog.Quote(name)
}
