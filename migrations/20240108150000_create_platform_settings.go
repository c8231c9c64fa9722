package migrations

import (
	"context"

	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
	"github.com/pthm/schemaward/pkg/settings"
)

func init() {
	register(&migrator.Unit{
		Version: 20240108150000,
		Name:    "create_platform_settings",
		Transitions: []schema.Transition{
			schema.EnsureTable(schema.TableSpec{
				Name: settingsTable,
				Columns: []schema.ColumnSpec{
					{Name: "key", Type: schema.Varchar(100), PrimaryKey: true},
					{Name: "value", Type: schema.Text},
					{Name: "updatedAt", Type: schema.Timestamp, Default: schema.DefaultNow},
				},
			}),
			schema.EnsureRow(settingsTable, "key", settings.MaintenanceKey, map[string]any{"value": "false"}),
		},
		Down: func(ctx context.Context, s *migrator.Session) error {
			return s.Apply(ctx, schema.DropTable(settingsTable))
		},
	})
}
