package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/pthm/schemaward/internal/cli"
	"github.com/pthm/schemaward/pkg/migrator"
)

var (
	migrateTarget string
	migrateDryRun bool

	downSteps  int
	downYes    bool
	downStrict bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migration units",
	Long: `Apply every pending migration unit in version order, one transaction per
unit. Each unit inspects the live schema and converges it, so a database
whose tracking table was lost or that was migrated by hand is safe to run
against.`,
	Example: `  # Apply everything pending
  schemaward migrate --db postgres://localhost/commerce

  # Stop after a version
  schemaward migrate --target 20230611093000

  # List what would run
  schemaward migrate --dry-run`,
	RunE: runMigrateUp,
}

// migrateUpCmd is the explicit spelling of migrate.
var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migration units (same as migrate)",
	RunE:  runMigrateUp,
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	var target migrator.Version
	if migrateTarget != "" {
		v, err := migrator.ParseVersion(migrateTarget)
		if err != nil {
			return cli.ConfigError("--target", err)
		}
		target = v
	}
	dryRun := resolveBool(migrateDryRun, cfg.Migrate.DryRun)

	return runMigrate(commandContext(cmd), target, dryRun)
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the most recently applied units",
	Long: `Revert the most recently applied units, newest first.

Units whose reversal would lose data are irreversible: they are forgotten
without running any DDL, unless --strict is given, in which case the
command stops with an error at the first such unit.`,
	Example: `  # Revert the last unit
  schemaward migrate down

  # Revert the last three without prompting
  schemaward migrate down -n 3 --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		strict := resolveBool(downStrict, cfg.Migrate.StrictDown)
		return runMigrateDown(commandContext(cmd), downSteps, strict, downYes)
	},
}

func init() {
	for _, c := range []*cobra.Command{migrateCmd, migrateUpCmd} {
		f := c.Flags()
		addDBFlags(c)
		f.StringVar(&migrateTarget, "target", "", "stop after this version (YYYYMMDDHHMMSS)")
		f.BoolVar(&migrateDryRun, "dry-run", false, "list pending units without applying them")
	}

	df := migrateDownCmd.Flags()
	addDBFlags(migrateDownCmd)
	df.IntVarP(&downSteps, "steps", "n", 1, "number of units to revert")
	df.BoolVarP(&downYes, "yes", "y", false, "do not ask for confirmation")
	df.BoolVar(&downStrict, "strict", false, "fail on irreversible units instead of unrecording them")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runMigrate(ctx context.Context, target migrator.Version, dryRun bool) error {
	db, _, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	res, err := newRunner(db).Up(ctx, migrator.UpOptions{Target: target, DryRun: dryRun})
	if res != nil && !quiet {
		for _, u := range res.Applied {
			fmt.Printf("applied  %s\n", u.ID())
		}
	}
	if err != nil {
		return migrationError("migration failed", err)
	}

	if dryRun {
		if len(res.Pending) == 0 {
			fmt.Println("Schema is up to date, nothing would run.")
			return nil
		}
		for _, u := range res.Pending {
			fmt.Printf("pending  %s\n", u.ID())
		}
		return nil
	}

	if !quiet {
		if len(res.Applied) == 0 {
			fmt.Println("Schema is up to date.")
		} else {
			fmt.Printf("Applied %d unit(s).\n", len(res.Applied))
		}
	}
	return nil
}

func runMigrateDown(ctx context.Context, steps int, strict, yes bool) error {
	if steps < 1 {
		return cli.ConfigError("--steps must be at least 1", nil)
	}

	if !yes {
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Revert the last %d migration unit(s)?", steps)).
			Description("Irreversible units are forgotten, not undone.").
			Affirmative("Revert").
			Negative("Cancel").
			Value(&confirmed).
			Run()
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return cli.GeneralError("aborted", nil)
			}
			return cli.ConfigError("confirmation needs a terminal; pass --yes", err)
		}
		if !confirmed {
			return cli.GeneralError("aborted", nil)
		}
	}

	db, _, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	res, err := newRunner(db).Down(ctx, migrator.DownOptions{Steps: steps, Strict: strict})
	if res != nil && !quiet {
		for _, u := range res.Reverted {
			fmt.Printf("reverted    %s\n", u.ID())
		}
		for _, u := range res.Unrecorded {
			fmt.Printf("unrecorded  %s (%s)\n", u.ID(), u.Irreversible)
		}
	}
	if err != nil {
		return migrationError("revert failed", err)
	}
	return nil
}
