package migrations

import (
	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

// Tenants billed on a fixed day of month move to the DOM anchor.
var billingAnchorBackfill = schema.Backfill{
	Table:    tenantTable,
	Column:   "billingAnchor",
	Expr:     `'DOM'`,
	Where:    `"billingDayOfMonth" IS NOT NULL AND "billingAnchor" <> 'DOM'`,
	Requires: []string{"billingDayOfMonth"},
}

func init() {
	register(&migrator.Unit{
		Version: 20231010090000,
		Name:    "add_tenant_billing_anchor",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.EnsureColumn(tenantTable, schema.ColumnSpec{
				Name:    "billingAnchor",
				Type:    schema.Varchar(3),
				Default: schema.DefaultLiteral("EOM"),
			}),
			schema.EnsureCheck(tenantTable, billingAnchorCheck),
			billingAnchorBackfill.Transition(),
		},
		Irreversible: "tenants may have changed their billing anchor since; dropping it loses their choice",
	})
}
