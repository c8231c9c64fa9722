package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230714160000,
		Name:    "scope_public_code_per_tenant",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.RescueTable(productPackagesRescue),
			schema.EnsureColumn(productPackagesTable, publicCodeColumn),
			schema.SupersededBy(schema.ReplaceIndex(publicCodePerTenant, publicCodeGlobalIndex),
				publicCodePerProductIndex),
		},
		// Fails when two tenants already share a code.
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx, schema.ReplaceIndex(publicCodeGlobal, publicCodePerTenantIndex))
		},
	})
}
