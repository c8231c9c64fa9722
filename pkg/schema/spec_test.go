package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pthm/schemaward/pkg/catalog"
)

var (
	pg16   = catalog.PostgresCapabilities(160002, "16.2")
	pg12   = catalog.PostgresCapabilities(120017, "12.17")
	sqlite = catalog.SQLiteCapabilities(3046000, "3.46.0")
)

func TestTypeSQL(t *testing.T) {
	tests := []struct {
		typ    Type
		pg     string
		sqlite string
	}{
		{UUID, "uuid", "TEXT"},
		{Text, "text", "TEXT"},
		{Varchar(255), "varchar(255)", "VARCHAR(255)"},
		{Integer, "integer", "INTEGER"},
		{BigInt, "bigint", "INTEGER"},
		{Boolean, "boolean", "BOOLEAN"},
		{Timestamp, "timestamptz", "TIMESTAMP"},
		{JSON, "jsonb", "TEXT"},
		{Numeric(10, 2), "numeric(10,2)", "NUMERIC(10,2)"},
	}

	for _, tt := range tests {
		t.Run(tt.pg, func(t *testing.T) {
			assert.Equal(t, tt.pg, tt.typ.SQL(catalog.Postgres))
			assert.Equal(t, tt.sqlite, tt.typ.SQL(catalog.SQLite))
		})
	}
}

func TestDefaultSQL(t *testing.T) {
	def, ok := DefaultUUID.SQL(pg16)
	assert.True(t, ok)
	assert.Equal(t, "gen_random_uuid()", def)

	def, ok = DefaultUUID.SQL(pg12)
	assert.True(t, ok, "pgcrypto provides the generator before 13")
	assert.Equal(t, "gen_random_uuid()", def)

	_, ok = DefaultUUID.SQL(sqlite)
	assert.False(t, ok)

	def, ok = DefaultLiteral("it's").SQL(sqlite)
	assert.True(t, ok)
	assert.Equal(t, `'it''s'`, def)

	_, ok = NoDefault.SQL(pg16)
	assert.False(t, ok)
}

func TestColumnSpecDefinition(t *testing.T) {
	col := ColumnSpec{
		Name:       "tenantId",
		Type:       UUID,
		References: &Reference{Table: "tenant", OnDelete: "CASCADE"},
	}
	assert.Equal(t, `"tenantId" uuid NOT NULL REFERENCES "tenant" ("id") ON DELETE CASCADE`, col.Definition(pg16))

	id := ColumnSpec{Name: "id", Type: UUID, PrimaryKey: true, Default: DefaultUUID}
	assert.Equal(t, `"id" uuid PRIMARY KEY DEFAULT gen_random_uuid()`, id.Definition(pg16))
	assert.Equal(t, `"id" TEXT PRIMARY KEY`, id.Definition(sqlite))

	anchor := ColumnSpec{Name: "billingAnchor", Type: Varchar(3), Default: DefaultLiteral("EOM")}
	assert.Equal(t, `"billingAnchor" varchar(3) NOT NULL DEFAULT 'EOM'`, anchor.Definition(pg16))
}

func TestTableSpecCreateSQL(t *testing.T) {
	spec := TableSpec{
		Name: "tenant",
		Columns: []ColumnSpec{
			{Name: "id", Type: UUID, PrimaryKey: true, Default: DefaultUUID},
			{Name: "slug", Type: Text, Unique: true},
		},
		Checks: []CheckSpec{{Name: "chk_tenant_slug", Expr: `"slug" <> ''`}},
	}

	want := "CREATE TABLE IF NOT EXISTS \"tenant\" (\n" +
		"    \"id\" uuid PRIMARY KEY DEFAULT gen_random_uuid(),\n" +
		"    \"slug\" text NOT NULL UNIQUE,\n" +
		"    CONSTRAINT \"chk_tenant_slug\" CHECK (\"slug\" <> '')\n" +
		")"
	assert.Equal(t, want, spec.CreateSQL(pg16))

	col, ok := spec.Column("slug")
	assert.True(t, ok)
	assert.True(t, col.Unique)
}

func TestIndexSpec(t *testing.T) {
	idx := IndexSpec{
		Name:    "uq_product_packages_product_public_code",
		Table:   "product_packages",
		Columns: []string{"product_id", "publicCode"},
		Unique:  true,
		Where:   `"publicCode" IS NOT NULL`,
	}
	assert.Equal(t,
		`CREATE UNIQUE INDEX IF NOT EXISTS "uq_product_packages_product_public_code" ON "product_packages" ("product_id", "publicCode") WHERE "publicCode" IS NOT NULL`,
		idx.CreateSQL())
	assert.Equal(t, []string{"product_id", "publicCode"}, idx.KeyParts())
	assert.NoError(t, idx.Supported(sqlite))

	old := catalog.SQLiteCapabilities(3007000, "3.7.0")
	assert.ErrorIs(t, idx.Supported(old), ErrUnsupported)

	expr := IndexSpec{Name: "uq_domain", Table: "tenant_domain", Expressions: []string{`lower("domain")`}, Unique: true}
	assert.Equal(t, `CREATE UNIQUE INDEX IF NOT EXISTS "uq_domain" ON "tenant_domain" (lower("domain"))`, expr.CreateSQL())
	assert.ErrorIs(t, expr.Supported(catalog.SQLiteCapabilities(3008000, "3.8.0")), ErrUnsupported)

	assert.Equal(t, `DROP INDEX IF EXISTS "uq_domain"`, DropIndexSQL("uq_domain"))
}

func TestHasUUIDDefault(t *testing.T) {
	assert.True(t, HasUUIDDefault("gen_random_uuid()"))
	assert.True(t, HasUUIDDefault("public.uuid_generate_v4()"))
	assert.True(t, HasUUIDDefault("GEN_RANDOM_UUID()"))
	assert.False(t, HasUUIDDefault(""))
	assert.False(t, HasUUIDDefault("nextval('integrations_id_seq'::regclass)"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "partial", Partial.String())
	assert.Equal(t, "target", Target.String())
	assert.Equal(t, "State(7)", State(7).String())
}
