package migrations

import (
	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

// Orders inherit the tenant of their package. Orders whose package is gone
// or has no tenant are left NULL and make the NOT NULL step fail: they need
// a human decision, not a guess.
var ordersTenantBackfill = schema.Backfill{
	Table:  productOrdersTable,
	Column: "tenantId",
	Expr: `(SELECT pp."tenantId" FROM "product_packages" pp
		WHERE pp."id" = "product_orders"."package_id")`,
	Where: `"tenantId" IS NULL AND EXISTS (SELECT 1 FROM "product_packages" pp
		WHERE pp."id" = "product_orders"."package_id" AND pp."tenantId" IS NOT NULL)`,
	Requires: []string{"package_id"},
}

func init() {
	register(&migrator.Unit{
		Version: 20230611093000,
		Name:    "rescue_product_orders_tenant",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.RescueTable(productPackagesRescue),
			schema.RescueTable(productOrdersRescue),
			schema.EnsureColumn(productOrdersTable, tenantColumn()),
			ordersTenantBackfill.Transition(),
			schema.EnsureNotNull(productOrdersTable, "tenantId"),
			schema.EnsureIndex(schema.IndexSpec{
				Name:    ordersTenantIndex,
				Table:   productOrdersTable,
				Columns: []string{"tenantId"},
			}),
		},
		Irreversible: "tenantId holds backfilled tenancy that cannot be recomputed once packages change",
	})
}
