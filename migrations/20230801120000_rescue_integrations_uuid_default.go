package migrations

import (
	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
)

func init() {
	register(&migrator.Unit{
		Version: 20230801120000,
		Name:    "rescue_integrations_uuid_default",
		Transitions: []schema.Transition{
			schema.RescueTable(tenantRescue),
			schema.RescueTable(integrationsRescue),
			schema.EnsureUUIDDefault(integrationsTable, "id"),
		},
		Irreversible: "the previous state was a missing id default, which is a defect worth keeping fixed",
	})
}
