package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230402110000,
		Name:    "create_product_orders",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.RescueTable(productPackagesRescue),
			schema.EnsureTable(schema.TableSpec{
				Name: productOrdersTable,
				Columns: []schema.ColumnSpec{
					idColumn(),
					{Name: "package_id", Type: schema.UUID, Nullable: true,
						References: &schema.Reference{Table: productPackagesTable, OnDelete: "SET NULL"}},
					{Name: "quantity", Type: schema.Integer, Default: schema.DefaultExpr("1")},
					{Name: "status", Type: schema.Varchar(20), Default: schema.DefaultLiteral("pending")},
					createdAtColumn(),
				},
			}),
		},
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx, schema.DropTable(productOrdersTable))
		},
	})
}
