package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

// Authoritative publicCode scope: unique per product. Both earlier scopes
// are dropped by name.
func init() {
	register(&migrator.Unit{
		Version: 20231120113000,
		Name:    "scope_public_code_per_product",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.RescueTable(productPackagesRescue),
			schema.EnsureColumn(productPackagesTable, publicCodeColumn),
			schema.ReplaceIndex(publicCodePerProduct, publicCodePerTenantIndex, publicCodeGlobalIndex),
		},
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx, schema.ReplaceIndex(publicCodePerTenant, publicCodePerProductIndex))
		},
	})
}
