package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/schemaward/internal/cli"
	"github.com/pthm/schemaward/internal/doctor"
	"github.com/pthm/schemaward/migrations"
	"github.com/pthm/schemaward/pkg/guard"
)

var (
	doctorGuardDir string
	doctorVerbose  bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long: `Run health checks on the migration sources, the tracking table, the schema
end-state invariants, and the platform settings.`,
	Example: `  # Run health checks
  schemaward doctor --db postgres://localhost/commerce

  # Run with verbose output
  schemaward doctor --db postgres://localhost/commerce --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		guardDir := resolveString(doctorGuardDir, cfg.Guard.Dir)
		verboseFlag := resolveBool(doctorVerbose, cfg.Doctor.Verbose)

		return runDoctor(cmd, guardDir, verboseFlag)
	},
}

func init() {
	f := doctorCmd.Flags()
	addDBFlags(doctorCmd)
	f.StringVar(&doctorGuardDir, "guard-dir", "", "migration source directory to lint")
	f.BoolVar(&doctorVerbose, "verbose", false, "show detailed output")
}

func runDoctor(cmd *cobra.Command, guardDir string, verboseFlag bool) error {
	ctx := commandContext(cmd)
	db, _, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	extra, err := cfg.GuardRules()
	if err != nil {
		return cli.ConfigError("guard.rules", err)
	}

	if !quiet {
		fmt.Println("schemaward doctor - Health Check")
	}

	d := doctor.New(db, migrations.Sequence(),
		doctor.WithGuardDir(guardDir),
		doctor.WithGuard(guard.New(
			guard.WithRules(extra...),
			guard.WithExtensions(cfg.Guard.Extensions...),
			guard.WithLogger(log))),
		doctor.WithInvariants(migrations.Invariants()),
		doctor.WithTable(cfg.Migrate.Table),
		doctor.WithLogger(log))
	report, err := d.Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, verboseFlag)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}

	return nil
}
