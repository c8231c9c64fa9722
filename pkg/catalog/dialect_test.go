package catalog

import (
	"errors"
	"fmt"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"", Postgres},
		{"postgres", Postgres},
		{"PostgreSQL", Postgres},
		{" pg ", Postgres},
		{"sqlite", SQLite},
		{"sqlite3", SQLite},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDialect("mysql")
	assert.True(t, IsUnsupportedDialectErr(err))
}

func TestDialectForDriver(t *testing.T) {
	d, err := DialectForDriver("pgx")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = DialectForDriver("sqlite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	assert.Equal(t, "sqlite", d.DriverName())
	assert.Equal(t, "postgres", Postgres.DriverName())

	_, err = DialectForDriver("mssql")
	assert.ErrorIs(t, err, ErrUnsupportedDialect)

	_, err = New("mssql", nil)
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestBuilderPlaceholders(t *testing.T) {
	query, args, err := Postgres.Builder().Select("1").From("t").Where(sq.Eq{"a": 1, "b": 2}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM t WHERE a = $1 AND b = $2", query)
	assert.Equal(t, []any{1, 2}, args)

	query, _, err = SQLite.Builder().Select("1").From("t").Where(sq.Eq{"a": 1}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM t WHERE a = ?", query)
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"tenantId"`, Quote("tenantId"))
	assert.Equal(t, `"we""ird"`, Quote(`we"ird`))
	assert.Equal(t, []string{`"a"`, `"b"`}, QuoteAll([]string{"a", "b"}))
	assert.Equal(t, `'O''Brien'`, Literal("O'Brien"))
}

func TestPostgresCapabilities(t *testing.T) {
	pg12 := PostgresCapabilities(120017, "12.17")
	assert.False(t, pg12.NativeUUID)
	assert.True(t, pg12.UUIDExtension)
	assert.True(t, pg12.UUIDDefaults())
	assert.True(t, pg12.AddColumnIfNotExists)

	pg95 := PostgresCapabilities(90524, "9.5.24")
	assert.False(t, pg95.AddColumnIfNotExists)

	pg16 := PostgresCapabilities(160002, "16.2")
	assert.True(t, pg16.NativeUUID)
	assert.False(t, pg16.UUIDExtension)
	assert.True(t, pg16.AdvisoryLocks)
	assert.Equal(t, "postgres 16.2", pg16.String())
}

func TestParseSQLiteVersion(t *testing.T) {
	n, err := parseSQLiteVersion("3.46.0")
	require.NoError(t, err)
	assert.Equal(t, 3046000, n)

	n, err = parseSQLiteVersion("3.8")
	require.NoError(t, err)
	assert.Equal(t, 3008000, n)

	_, err = parseSQLiteVersion("three")
	assert.Error(t, err)

	caps := SQLiteCapabilities(3024000, "3.24.0")
	assert.False(t, caps.RenameColumn)
	assert.True(t, caps.PartialIndexes)
}

func TestIndexColumns(t *testing.T) {
	tests := []struct {
		def  string
		want []string
	}{
		{
			`CREATE UNIQUE INDEX uq_product_packages_product_public_code ON public.product_packages USING btree (product_id, "publicCode") WHERE ("publicCode" IS NOT NULL)`,
			[]string{"product_id", "publicCode"},
		},
		{
			`CREATE UNIQUE INDEX "uq_tenant_domain_domain" ON "tenant_domain" (lower("domain"))`,
			[]string{`lower("domain")`},
		},
		{
			`CREATE INDEX uq ON public.tenant_domain USING btree (lower((domain)::text), "tenantId")`,
			[]string{"lower((domain)::text)", "tenantId"},
		},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Index{Definition: tt.def}.Columns(), tt.def)
	}
}

func TestIsMissingObject(t *testing.T) {
	assert.False(t, IsMissingObject(nil))
	assert.True(t, IsMissingObject(&pq.Error{Code: "42704"}))
	assert.True(t, IsMissingObject(fmt.Errorf("wrapped: %w", &pq.Error{Code: "42P01"})))
	assert.False(t, IsMissingObject(&pq.Error{Code: "23505"}))
	assert.True(t, IsMissingObject(&pgconn.PgError{Code: "42703"}))
	assert.False(t, IsMissingObject(&pgconn.PgError{Code: "42601"}))
	assert.True(t, IsMissingObject(errors.New("SQL logic error: no such index: ix (1)")))
	assert.False(t, IsMissingObject(errors.New("UNIQUE constraint failed")))
}
