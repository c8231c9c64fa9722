package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230105091500,
		Name:    "create_tenant_domain",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.EnsureTable(schema.TableSpec{
				Name: tenantDomainTable,
				Columns: []schema.ColumnSpec{
					idColumn(),
					{Name: "tenantId", Type: schema.UUID, References: tenantRef()},
					{Name: "domain", Type: schema.Varchar(255)},
					createdAtColumn(),
				},
			}),
			// Domains compare case-insensitively.
			schema.EnsureIndex(schema.IndexSpec{
				Name:        tenantDomainIndex,
				Table:       tenantDomainTable,
				Expressions: []string{`lower("domain")`},
				Unique:      true,
			}),
		},
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx,
				schema.DropIndexIfExists(tenantDomainIndex),
				schema.DropTable(tenantDomainTable),
			)
		},
	})
}
