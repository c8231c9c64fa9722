package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230110120000,
		Name:    "create_users",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.EnsureTable(schema.TableSpec{
				Name: usersTable,
				Columns: []schema.ColumnSpec{
					idColumn(),
					// Renamed to tenantId by 20230905100000.
					{Name: "tenant_id", Type: schema.UUID, Nullable: true, References: tenantRef()},
					{Name: "email", Type: schema.Varchar(255), Unique: true},
					createdAtColumn(),
				},
			}),
		},
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx, schema.DropTable(usersTable))
		},
	})
}
