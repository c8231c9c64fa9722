package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230105090000,
		Name:    "create_tenant",
		Transitions: []schema.Transition{
			schema.EnsureTable(schema.TableSpec{
				Name: tenantTable,
				Columns: []schema.ColumnSpec{
					idColumn(),
					{Name: "name", Type: schema.Varchar(255)},
					{Name: "slug", Type: schema.Varchar(100), Unique: true},
					// Superseded by billingAnchor, kept for the backfill.
					{Name: "billingDayOfMonth", Type: schema.Integer, Nullable: true},
					createdAtColumn(),
				},
			}),
		},
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx, schema.DropTable(tenantTable))
		},
	})
}
