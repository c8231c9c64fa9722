package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm/schemaward/internal/cli"
	"github.com/pthm/schemaward/pkg/guard"
)

var (
	guardDir   string
	guardExts  []string
	guardWatch bool
)

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Lint migration sources",
	Long: `Scan migration source files for patterns that have broken production:
foreign keys to the non-existent "tenants" table, unquoted billingAnchor
checks, and unresolved merge-conflict markers.

Violations are written to stderr and the command exits 1. A clean scan
prints a confirmation to stdout.`,
	Example: `  # Lint the configured migration directory
  schemaward guard

  # Lint another directory, TypeScript only
  schemaward guard --dir src/migrations --ext ts

  # Re-lint on every change
  schemaward guard --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := resolveString(guardDir, cfg.Guard.Dir)
		exts := resolveStrings(guardExts, cfg.Guard.Extensions)

		extra, err := cfg.GuardRules()
		if err != nil {
			return cli.ConfigError("guard.rules", err)
		}
		g := guard.New(
			guard.WithRules(extra...),
			guard.WithExtensions(exts...),
			guard.WithLogger(log))

		if guardWatch {
			return runGuardWatch(cmd.Context(), g, dir, cmd.OutOrStdout(), cmd.ErrOrStderr())
		}
		return runGuard(g, dir, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	f := guardCmd.Flags()
	f.StringVar(&guardDir, "dir", "", "migration source directory")
	f.StringSliceVar(&guardExts, "ext", nil, "file extensions to scan (repeatable)")
	f.BoolVar(&guardWatch, "watch", false, "re-scan whenever a migration file changes")
}

// runGuard scans dir once. Violations go to stderr and map to exit 1; a
// clean scan confirms on stdout unless --quiet is set.
func runGuard(g *guard.Guard, dir string, stdout, stderr io.Writer) error {
	report, err := g.Scan(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cli.ConfigError(fmt.Sprintf("migration directory %s", dir), err)
		}
		return cli.GeneralError("scanning migrations", err)
	}
	registry.ObserveGuard(g.Rules(), report)

	if !report.OK() {
		report.Print(stderr)
		return cli.Exit(cli.ExitGeneral)
	}
	if !quiet {
		report.Print(stdout)
	}
	return nil
}

func runGuardWatch(ctx context.Context, g *guard.Guard, dir string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := g.Watch(ctx, dir, func(report *guard.Report, err error) {
		if err != nil {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			return
		}
		registry.ObserveGuard(g.Rules(), report)
		if report.OK() {
			report.Print(stdout)
			return
		}
		report.Print(stderr)
	})
	if err != nil {
		return cli.GeneralError("watching migrations", err)
	}
	return nil
}
