package migrations

import (
	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230905100000,
		Name:    "rename_users_tenant_id",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.RescueTable(usersRescue),
			schema.RenameColumn(usersTable, "tenant_id", "tenantId", tenantColumn()),
			schema.EnsureIndex(schema.IndexSpec{
				Name:    usersTenantIndex,
				Table:   usersTable,
				Columns: []string{"tenantId"},
			}),
		},
		Irreversible: "environments that had both columns keep tenant_id; renaming back would collide with it",
	})
}
