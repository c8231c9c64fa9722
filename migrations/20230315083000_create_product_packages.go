package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230315083000,
		Name:    "create_product_packages",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.EnsureTable(schema.TableSpec{
				Name: productPackagesTable,
				Columns: []schema.ColumnSpec{
					idColumn(),
					{Name: "product_id", Type: schema.UUID},
					tenantColumn(),
					{Name: "name", Type: schema.Varchar(255)},
					{Name: "price", Type: schema.Numeric(10, 2), Default: schema.DefaultExpr("0")},
					createdAtColumn(),
				},
			}),
		},
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx, schema.DropTable(productPackagesTable))
		},
	})
}
