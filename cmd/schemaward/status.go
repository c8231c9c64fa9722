package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/schemaward/internal/cli"
	"github.com/pthm/schemaward/pkg/migrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  `Show which migration units are applied, pending, or recorded but unknown to this build.`,
	Example: `  # Check status
  schemaward status --db postgres://localhost/commerce`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd)
	},
}

func init() {
	addDBFlags(statusCmd)
}

func runStatus(cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	db, _, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	st, err := newRunner(db).Status(ctx)
	if err != nil {
		return cli.GeneralError("getting status", err)
	}

	if !st.TrackingTable {
		fmt.Printf("Tracking table %s does not exist; nothing has been applied.\n\n", cfg.Migrate.Table)
	}

	t := newTable("VERSION", "NAME", "STATE", "APPLIED AT", "")
	for _, u := range st.Units {
		applied := ""
		if !u.AppliedAt.IsZero() {
			applied = u.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		note := ""
		if u.Irreversible {
			note = mutedStyle.Render("irreversible")
		}
		t.Row(u.Version.String(), u.Name, renderUnitState(u.State), applied, note)
	}
	fmt.Println(t.Render())

	fmt.Printf("\n%d applied, %d pending, %d missing\n",
		st.Count(migrator.StateApplied), st.Count(migrator.StatePending), st.Count(migrator.StateMissing))
	if st.UpToDate() {
		fmt.Println("Schema is up to date.")
	} else {
		fmt.Println("Run 'schemaward migrate' to apply pending units.")
	}
	return nil
}
