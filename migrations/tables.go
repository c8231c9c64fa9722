package migrations

import (
	"github.com/pthm/schemaward/pkg/schema"
	"github.com/pthm/schemaward/pkg/settings"
)

// Table names.
const (
	tenantTable          = "tenant"
	tenantDomainTable    = "tenant_domain"
	usersTable           = "users"
	integrationsTable    = "integrations"
	productPackagesTable = "product_packages"
	productOrdersTable   = "product_orders"
	settingsTable        = settings.Table
)

// Index names. Superseded names stay here so later units can drop them.
const (
	tenantDomainIndex         = "uq_tenant_domain_domain"
	ordersTenantIndex         = "ix_product_orders_tenant"
	usersTenantIndex          = "ix_users_tenant"
	publicCodeGlobalIndex     = "uq_product_packages_public_code"
	publicCodePerTenantIndex  = "uq_product_packages_tenant_public_code"
	publicCodePerProductIndex = "uq_product_packages_product_public_code"
)

const publicCodeNotNull = `"publicCode" IS NOT NULL`

func idColumn() schema.ColumnSpec {
	return schema.ColumnSpec{Name: "id", Type: schema.UUID, PrimaryKey: true, Default: schema.DefaultUUID}
}

func createdAtColumn() schema.ColumnSpec {
	return schema.ColumnSpec{Name: "createdAt", Type: schema.Timestamp, Default: schema.DefaultNow}
}

func tenantRef() *schema.Reference {
	return &schema.Reference{Table: tenantTable, OnDelete: "CASCADE"}
}

// tenantColumn is the nullable tenant reference added to tables that
// predate tenancy.
func tenantColumn() schema.ColumnSpec {
	return schema.ColumnSpec{Name: "tenantId", Type: schema.UUID, Nullable: true, References: tenantRef()}
}

var publicCodeColumn = schema.ColumnSpec{Name: "publicCode", Type: schema.Varchar(50), Nullable: true}

var billingAnchorCheck = schema.CheckSpec{
	Name: "chk_tenant_billing_anchor",
	Expr: `"billingAnchor" IN ('EOM', 'DOM')`,
}

// Rescue shapes: the least a later unit needs from a table an earlier
// unit should have created. Columns added by later units are left to
// their EnsureColumn steps.
var (
	tenantRescue = schema.TableSpec{
		Name: tenantTable,
		Columns: []schema.ColumnSpec{
			idColumn(),
			{Name: "name", Type: schema.Varchar(255)},
			{Name: "slug", Type: schema.Varchar(100), Unique: true},
			createdAtColumn(),
		},
	}

	usersRescue = schema.TableSpec{
		Name: usersTable,
		Columns: []schema.ColumnSpec{
			idColumn(),
			{Name: "email", Type: schema.Varchar(255), Unique: true},
			createdAtColumn(),
		},
	}

	integrationsRescue = schema.TableSpec{
		Name: integrationsTable,
		Columns: []schema.ColumnSpec{
			idColumn(),
			tenantColumn(),
			{Name: "provider", Type: schema.Varchar(50)},
			{Name: "config", Type: schema.JSON, Nullable: true},
		},
	}

	productPackagesRescue = schema.TableSpec{
		Name: productPackagesTable,
		Columns: []schema.ColumnSpec{
			idColumn(),
			{Name: "product_id", Type: schema.UUID},
			tenantColumn(),
			{Name: "name", Type: schema.Varchar(255)},
		},
	}

	productOrdersRescue = schema.TableSpec{
		Name: productOrdersTable,
		Columns: []schema.ColumnSpec{
			idColumn(),
			{Name: "package_id", Type: schema.UUID, Nullable: true,
				References: &schema.Reference{Table: productPackagesTable, OnDelete: "SET NULL"}},
			createdAtColumn(),
		},
	}
)

// publicCode uniqueness scopes, in the order they were introduced.
var (
	publicCodeGlobal = schema.IndexSpec{
		Name:    publicCodeGlobalIndex,
		Table:   productPackagesTable,
		Columns: []string{"publicCode"},
		Unique:  true,
		Where:   publicCodeNotNull,
	}

	publicCodePerTenant = schema.IndexSpec{
		Name:    publicCodePerTenantIndex,
		Table:   productPackagesTable,
		Columns: []string{"tenantId", "publicCode"},
		Unique:  true,
		Where:   publicCodeNotNull,
	}

	publicCodePerProduct = schema.IndexSpec{
		Name:    publicCodePerProductIndex,
		Table:   productPackagesTable,
		Columns: []string{"product_id", "publicCode"},
		Unique:  true,
		Where:   publicCodeNotNull,
	}
)
