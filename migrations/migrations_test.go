package migrations_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pthm/schemaward/internal/testutil"
	"github.com/pthm/schemaward/migrations"
	"github.com/pthm/schemaward/pkg/catalog"
	"github.com/pthm/schemaward/pkg/guard"
	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
	"github.com/pthm/schemaward/pkg/settings"
)

const (
	createProductOrders = migrator.Version(20230402110000)
	createUsers         = migrator.Version(20230110120000)
	addPublicCode       = migrator.Version(20230520140000)
	rescueOrdersTenant  = migrator.Version(20230611093000)
	renameUsersTenantID = migrator.Version(20230905100000)
)

func newRunner(t *testing.T, db *sql.DB) *migrator.Runner {
	t.Helper()
	return migrator.NewRunner(db, migrations.Sequence(), migrator.WithLogger(zaptest.NewLogger(t)))
}

func migrateTo(t *testing.T, db *sql.DB, target migrator.Version) {
	t.Helper()
	_, err := newRunner(t, db).Up(context.Background(), migrator.UpOptions{Target: target})
	require.NoError(t, err)
}

func migrateAll(t *testing.T, db *sql.DB) {
	t.Helper()
	migrateTo(t, db, 0)
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err, query)
}

func checkInvariants(t *testing.T, db *sql.DB) map[string]error {
	t.Helper()
	ctx := context.Background()
	caps, err := catalog.DetectCapabilities(ctx, db)
	require.NoError(t, err)
	cat, err := catalog.New(caps.Dialect, db)
	require.NoError(t, err)

	results, err := schema.CheckAll(ctx, cat, caps, migrations.Invariants())
	require.NoError(t, err)
	return results
}

func TestSequence(t *testing.T) {
	units := migrations.Sequence().Units()

	var names []string
	var irreversible []string
	for i, u := range units {
		if i > 0 {
			assert.Greater(t, u.Version, units[i-1].Version)
		}
		names = append(names, u.Name)
		if !u.Reversible() {
			irreversible = append(irreversible, u.Name)
		}
	}

	want := []string{
		"create_tenant",
		"create_tenant_domain",
		"create_users",
		"create_integrations",
		"create_product_packages",
		"create_product_orders",
		"add_public_code_global",
		"rescue_product_orders_tenant",
		"scope_public_code_per_tenant",
		"rescue_integrations_uuid_default",
		"rename_users_tenant_id",
		"add_tenant_billing_anchor",
		"scope_public_code_per_product",
		"create_platform_settings",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{
		"rescue_product_orders_tenant",
		"rescue_integrations_uuid_default",
		"rename_users_tenant_id",
		"add_tenant_billing_anchor",
	}, irreversible)
}

func TestMigrationSourcesPassGuard(t *testing.T) {
	report, err := guard.New().Scan(".")
	require.NoError(t, err)
	assert.NoError(t, report.Err())
	assert.Positive(t, report.Files)
}

func TestMigrate_SQLite_FromEmpty(t *testing.T) {
	db := testutil.SQLiteDB(t)
	ctx := context.Background()

	migrateAll(t, db)

	// A second run finds nothing pending.
	res, err := newRunner(t, db).Up(ctx, migrator.UpOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Applied)

	st, err := newRunner(t, db).Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.UpToDate())
	assert.Equal(t, migrations.Sequence().Len(), st.Count(migrator.StateApplied))

	results := checkInvariants(t, db)
	assert.True(t, schema.IsUnsupportedErr(results["product_orders.tenantId is NOT NULL"]),
		"SQLite cannot tighten an added column")
	assert.True(t, schema.IsUnsupportedErr(results["integrations.id generates UUIDs"]))
	for name, err := range results {
		assert.False(t, schema.IsInvariantViolatedErr(err), "%s: %v", name, err)
	}

	on, err := settings.New(db, catalog.SQLite).Maintenance(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestMigrate_SQLite_ReplayAfterTrackingLoss(t *testing.T) {
	db := testutil.SQLiteDB(t)
	ctx := context.Background()
	migrateAll(t, db)

	tenant := uuid.NewString()
	mustExec(t, db, `INSERT INTO "tenant" ("id", "name", "slug") VALUES (?, 'Acme', 'acme')`, tenant)
	// Same code on two products is allowed by the final scope but would
	// break the global and per-tenant indexes if they were rebuilt.
	mustExec(t, db, `INSERT INTO "product_packages" ("id", "product_id", "tenantId", "name", "publicCode")
		VALUES (?, ?, ?, 'Basic', 'CODE'), (?, ?, ?, 'Basic', 'CODE')`,
		uuid.NewString(), uuid.NewString(), tenant, uuid.NewString(), uuid.NewString(), tenant)

	mustExec(t, db, `DROP TABLE "schema_migrations"`)
	migrateAll(t, db)

	cat, err := catalog.New(catalog.SQLite, db)
	require.NoError(t, err)
	idxs, err := cat.Indexes(ctx, "product_packages")
	require.NoError(t, err)
	var names []string
	for _, i := range idxs {
		names = append(names, i.Name)
	}
	assert.Equal(t, []string{"uq_product_packages_product_public_code"}, names)

	st, err := newRunner(t, db).Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.UpToDate())
}

func TestMigrate_SQLite_RescuesDroppedTable(t *testing.T) {
	db := testutil.SQLiteDB(t)
	ctx := context.Background()

	migrateTo(t, db, addPublicCode)
	// Environments where create_product_orders never took effect.
	mustExec(t, db, `DROP TABLE "product_orders"`)

	migrateAll(t, db)

	cat, err := catalog.New(catalog.SQLite, db)
	require.NoError(t, err)
	col, ok, err := cat.Column(ctx, "product_orders", "tenantId")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TEXT", col.DataType)

	ok, err = cat.IndexExists(ctx, "ix_product_orders_tenant")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMigrate_SQLite_RescuedTenantHasNoBillingCheck(t *testing.T) {
	db := testutil.SQLiteDB(t)
	ctx := context.Background()

	migrateTo(t, db, renameUsersTenantID)
	mustExec(t, db, `DROP TABLE "tenant"`)
	// add_tenant_billing_anchor rescues tenant without billingAnchor; the
	// column comes from EnsureColumn and the CHECK is skipped on SQLite.
	migrateAll(t, db)

	cat, err := catalog.New(catalog.SQLite, db)
	require.NoError(t, err)
	ok, err := cat.ColumnExists(ctx, "tenant", "billingAnchor")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = cat.ConstraintExists(ctx, "tenant", "chk_tenant_billing_anchor")
	require.NoError(t, err)
	assert.False(t, ok)

	mustExec(t, db, `INSERT INTO "tenant" ("id", "name", "slug", "billingAnchor") VALUES (?, 'X', 'x', 'XYZ')`,
		uuid.NewString())
}

func TestMigrate_SQLite_Backfills(t *testing.T) {
	db := testutil.SQLiteDB(t)
	ctx := context.Background()
	migrateTo(t, db, createProductOrders)

	var (
		dayBilled = uuid.NewString()
		eomBilled = uuid.NewString()
		pkg       = uuid.NewString()
		order     = uuid.NewString()
		user      = uuid.NewString()
	)
	mustExec(t, db, `INSERT INTO "tenant" ("id", "name", "slug", "billingDayOfMonth") VALUES (?, 'A', 'a', 15), (?, 'B', 'b', NULL)`,
		dayBilled, eomBilled)
	mustExec(t, db, `INSERT INTO "product_packages" ("id", "product_id", "tenantId", "name") VALUES (?, ?, ?, 'Basic')`,
		pkg, uuid.NewString(), dayBilled)
	mustExec(t, db, `INSERT INTO "product_orders" ("id", "package_id") VALUES (?, ?)`, order, pkg)
	mustExec(t, db, `INSERT INTO "users" ("id", "tenant_id", "email") VALUES (?, ?, 'a@example.com')`, user, eomBilled)

	migrateAll(t, db)

	var orderTenant string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "tenantId" FROM "product_orders" WHERE "id" = ?`, order).Scan(&orderTenant))
	assert.Equal(t, dayBilled, orderTenant)

	anchors := map[string]string{}
	rows, err := db.QueryContext(ctx, `SELECT "id", "billingAnchor" FROM "tenant"`)
	require.NoError(t, err)
	for rows.Next() {
		var id, anchor string
		require.NoError(t, rows.Scan(&id, &anchor))
		anchors[id] = anchor
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, map[string]string{dayBilled: "DOM", eomBilled: "EOM"}, anchors)

	var userTenant string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "tenantId" FROM "users" WHERE "id" = ?`, user).Scan(&userTenant))
	assert.Equal(t, eomBilled, userTenant)

	cat, err := catalog.New(catalog.SQLite, db)
	require.NoError(t, err)
	ok, err := cat.ColumnExists(ctx, "users", "tenant_id")
	require.NoError(t, err)
	assert.False(t, ok, "tenant_id was renamed in place")
}

func TestMigrate_SQLite_RenameKeepsBothColumns(t *testing.T) {
	db := testutil.SQLiteDB(t)
	ctx := context.Background()
	migrateTo(t, db, createUsers)

	// A hotfix added tenantId by hand and only some rows were copied.
	mustExec(t, db, `ALTER TABLE "users" ADD COLUMN "tenantId" TEXT`)
	tenant := uuid.NewString()
	mustExec(t, db, `INSERT INTO "users" ("id", "tenant_id", "email") VALUES (?, ?, 'b@example.com')`, uuid.NewString(), tenant)

	migrateAll(t, db)

	var copied string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "tenantId" FROM "users" WHERE "email" = 'b@example.com'`).Scan(&copied))
	assert.Equal(t, tenant, copied)

	cat, err := catalog.New(catalog.SQLite, db)
	require.NoError(t, err)
	ok, err := cat.ColumnExists(ctx, "users", "tenant_id")
	require.NoError(t, err)
	assert.True(t, ok, "legacy column is kept when both exist")
}

func TestDown_SQLite(t *testing.T) {
	db := testutil.SQLiteDB(t)
	ctx := context.Background()
	migrateAll(t, db)

	r := newRunner(t, db)
	res, err := r.Down(ctx, migrator.DownOptions{Steps: 3})
	require.NoError(t, err)

	var reverted, unrecorded []string
	for _, u := range res.Reverted {
		reverted = append(reverted, u.Name)
	}
	for _, u := range res.Unrecorded {
		unrecorded = append(unrecorded, u.Name)
	}
	assert.Equal(t, []string{"create_platform_settings", "scope_public_code_per_product"}, reverted)
	assert.Equal(t, []string{"add_tenant_billing_anchor"}, unrecorded)

	cat, err := catalog.New(catalog.SQLite, db)
	require.NoError(t, err)
	ok, err := cat.IndexExists(ctx, "uq_product_packages_tenant_public_code")
	require.NoError(t, err)
	assert.True(t, ok, "per-tenant scope restored")

	ok, err = cat.ColumnExists(ctx, "tenant", "billingAnchor")
	require.NoError(t, err)
	assert.True(t, ok, "irreversible unit leaves its column")

	// Re-applying the reverted and unrecorded units is safe.
	res2, err := r.Up(ctx, migrator.UpOptions{})
	require.NoError(t, err)
	assert.Len(t, res2.Applied, 3)

	_, err = r.Down(ctx, migrator.DownOptions{Steps: 3, Strict: true})
	require.Error(t, err)
	assert.True(t, migrator.IsIrreversibleErr(err))
}

func TestPlan_SQLite(t *testing.T) {
	db := testutil.SQLiteDB(t)
	ctx := context.Background()
	migrateTo(t, db, createProductOrders)

	plan, err := newRunner(t, db).Plan(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, plan)
	assert.Equal(t, "add_public_code_global", plan[0].Unit.Name)

	states := map[string]schema.State{}
	for _, a := range plan[0].Objects {
		states[a.Object] = a.State
	}
	assert.Equal(t, schema.Target, states["table product_packages"])
	assert.Equal(t, schema.Absent, states["column product_packages.publicCode"])
}

func TestPlan_SQLite_FreshDatabase(t *testing.T) {
	db := testutil.SQLiteDB(t)

	plan, err := newRunner(t, db).Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan, migrations.Sequence().Len())

	last := plan[len(plan)-1]
	assert.Equal(t, "create_platform_settings", last.Unit.Name)
	for _, obj := range last.Objects {
		assert.Equal(t, schema.Absent, obj.State, obj.Object)
	}
}

func TestMigrate_Postgres(t *testing.T) {
	db := testutil.PostgresDB(t)
	ctx := context.Background()

	require.NoError(t, migrator.Migrate(ctx, db, migrations.Sequence(), migrator.WithLogger(zaptest.NewLogger(t))))
	require.NoError(t, migrator.Migrate(ctx, db, migrations.Sequence()))

	for name, err := range checkInvariants(t, db) {
		assert.NoError(t, err, name)
	}

	var id string
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO "integrations" ("provider") VALUES ('stripe') RETURNING "id"`).Scan(&id))
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "integrations.id is generated")

	_, err = db.ExecContext(ctx, `INSERT INTO "tenant" ("name", "slug", "billingAnchor") VALUES ('X', 'x', 'XYZ')`)
	assert.Error(t, err, "billing anchor check is enforced")

	on, err := settings.New(db, catalog.Postgres).Maintenance(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestMigrate_Postgres_ReplayAfterTrackingLoss(t *testing.T) {
	db := testutil.PostgresDB(t)
	ctx := context.Background()
	migrateAll(t, db)

	mustExec(t, db, `DROP TABLE "schema_migrations"`)
	migrateAll(t, db)

	for name, err := range checkInvariants(t, db) {
		assert.NoError(t, err, name)
	}
	st, err := newRunner(t, db).Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.UpToDate())
}

func TestMigrate_Postgres_OrphanOrderAbortsRun(t *testing.T) {
	db := testutil.PostgresDB(t)
	ctx := context.Background()
	migrateTo(t, db, createProductOrders)

	mustExec(t, db, `INSERT INTO "product_orders" ("id") VALUES ($1)`, uuid.NewString())

	_, err := newRunner(t, db).Up(ctx, migrator.UpOptions{})
	require.Error(t, err)
	ue, ok := migrator.AsUnitError(err)
	require.True(t, ok)
	assert.Equal(t, rescueOrdersTenant, ue.Version)

	// The failing unit rolled back; earlier units stay applied.
	st, err := newRunner(t, db).Status(ctx)
	require.NoError(t, err)
	for _, u := range st.Units {
		want := migrator.StateApplied
		if u.Version >= rescueOrdersTenant {
			want = migrator.StatePending
		}
		assert.Equal(t, want, u.State, u.Version.String())
	}

	cat, err := catalog.New(catalog.Postgres, db)
	require.NoError(t, err)
	ok, err = cat.ColumnExists(ctx, "product_orders", "tenantId")
	require.NoError(t, err)
	assert.False(t, ok)
}
