package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230520140000,
		Name:    "add_public_code_global",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.RescueTable(productPackagesRescue),
			schema.EnsureColumn(productPackagesTable, publicCodeColumn),
			schema.SupersededBy(schema.EnsureIndex(publicCodeGlobal),
				publicCodePerTenantIndex, publicCodePerProductIndex),
		},
		// The column stays: codes may already be printed on customer material.
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx, schema.DropIndexIfExists(publicCodeGlobalIndex))
		},
	})
}
