package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230201100000,
		Name:    "create_integrations",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.EnsureTable(schema.TableSpec{
				Name: integrationsTable,
				Columns: []schema.ColumnSpec{
					// Shipped without a default; 20230801120000 installs one.
					{Name: "id", Type: schema.UUID, PrimaryKey: true},
					tenantColumn(),
					{Name: "provider", Type: schema.Varchar(50)},
					{Name: "config", Type: schema.JSON, Nullable: true},
					createdAtColumn(),
				},
			}),
		},
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx, schema.DropTable(integrationsTable))
		},
	})
}
