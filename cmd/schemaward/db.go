package main

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/pthm/schemaward/internal/cli"
	"github.com/pthm/schemaward/migrations"
	"github.com/pthm/schemaward/pkg/catalog"
	"github.com/pthm/schemaward/pkg/migrator"
)

// Shared database flags. Only one command runs per process.
var (
	dbURL    string
	dbEngine string
)

func addDBFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&dbURL, "db", "", "database URL (a file path for sqlite)")
	f.StringVar(&dbEngine, "engine", "", "database engine: postgres or sqlite")
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}

// resolveDialect gets the engine from flag or config.
func resolveDialect(flagEngine string) (catalog.Dialect, error) {
	if flagEngine != "" {
		d, err := catalog.ParseDialect(flagEngine)
		if err != nil {
			return "", cli.ConfigError("--engine", err)
		}
		return d, nil
	}
	d, err := cfg.Dialect()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	return d, nil
}

// openDB opens and pings the configured database.
func openDB(ctx context.Context) (*sql.DB, catalog.Dialect, error) {
	d, err := resolveDialect(dbEngine)
	if err != nil {
		return nil, "", err
	}
	dsn, err := resolveDSN(dbURL)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, "", cli.DBConnectError("connecting to database", err)
	}
	if d == catalog.SQLite {
		// One writer; migrations and the tracking table share it.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", cli.DBConnectError("connecting to database", err)
	}

	log.Debug("connected", zap.String("engine", string(d)))
	return db, d, nil
}

// newRunner returns a runner over the registered migration sequence.
func newRunner(db *sql.DB) *migrator.Runner {
	return migrator.NewRunner(db, migrations.Sequence(),
		migrator.WithTable(cfg.Migrate.Table),
		migrator.WithLogger(log),
		migrator.WithMetrics(registry.Migrator()))
}

// migrationError classifies a runner error for the exit code.
func migrationError(msg string, err error) error {
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if ue, ok := migrator.AsUnitError(err); ok {
		return cli.MigrationError(msg+": unit "+ue.Version.String()+"_"+ue.Name, ue.Err)
	}
	return cli.MigrationError(msg, err)
}
