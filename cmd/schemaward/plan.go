package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Assess pending units against the live schema",
	Long: `For every pending unit, report the state each schema object it manages is
in right now: absent, partial, or already at target. Nothing is changed.

Each unit is assessed against the current schema, not against the schema
earlier pending units would leave behind.`,
	Example: `  # Show what migrate would find
  schemaward plan --db postgres://localhost/commerce`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(cmd)
	},
}

func init() {
	addDBFlags(planCmd)
}

func runPlan(cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	db, _, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	plan, err := newRunner(db).Plan(ctx)
	if err != nil {
		return migrationError("planning", err)
	}
	if len(plan) == 0 {
		fmt.Println("Schema is up to date, nothing to plan.")
		return nil
	}

	t := newTable("UNIT", "OBJECT", "STATE")
	for _, entry := range plan {
		id := entry.Unit.ID()
		for _, obj := range entry.Objects {
			t.Row(id, obj.Object, renderObjectState(obj))
			id = ""
		}
		if entry.Imperative {
			t.Row(id, mutedStyle.Render("(data step)"), mutedStyle.Render("runs on apply"))
		}
	}
	fmt.Println(t.Render())
	fmt.Printf("\n%d unit(s) pending\n", len(plan))
	return nil
}
