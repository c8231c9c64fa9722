package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/schemaward/internal/cli"
	"github.com/pthm/schemaward/internal/logging"
	"github.com/pthm/schemaward/internal/metrics"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	log        = zap.NewNop()
	registry   = metrics.New()
	ranCommand string

	// Persistent flags
	cfgFile         string
	verbose         int
	quiet           bool
	metricsTextfile string
)

var rootCmd = &cobra.Command{
	Use:   "schemaward",
	Short: "Migration guard and idempotent migration runner",
	Long: `schemaward - Migration guard and idempotent migration runner

schemaward lints migration sources for patterns that have broken production,
and applies an ordered sequence of migration units that converge any
reachable schema state, including a partially migrated or drifted one, on
the intended end state.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		log = logging.New(os.Stderr, logging.Level(verbose, quiet))
		ranCommand = cmd.CommandPath()
		log.Debug("configuration loaded", zap.String("path", configPath), zap.String("command", ranCommand))
		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupGuard   = "guard"
	groupSchema  = "schema"
	groupOperate = "operate"
	groupUtility = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover schemaward.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "write run metrics to this file in the Prometheus text format")

	// Define command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: groupGuard, Title: "Guard:"},
		&cobra.Group{ID: groupSchema, Title: "Schema:"},
		&cobra.Group{ID: groupOperate, Title: "Operate:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	// Guard commands
	guardCmd.GroupID = groupGuard
	rootCmd.AddCommand(guardCmd)

	// Schema commands
	migrateCmd.GroupID = groupSchema
	statusCmd.GroupID = groupSchema
	planCmd.GroupID = groupSchema
	doctorCmd.GroupID = groupSchema
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(doctorCmd)

	// Operational commands
	maintenanceCmd.GroupID = groupOperate
	rootCmd.AddCommand(maintenanceCmd)

	// Utility commands
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	writeMetrics(err)
	_ = log.Sync()
	if err != nil {
		cli.ExitWithError(err)
	}
}

// writeMetrics exports the run's metrics when a textfile is configured.
// A failed export is logged and never changes the exit code.
func writeMetrics(runErr error) {
	var configured string
	if cfg != nil {
		configured = cfg.Metrics.Textfile
	}
	path := resolveString(metricsTextfile, configured)
	if path == "" || ranCommand == "" {
		return
	}

	registry.MarkRun(ranCommand, runErr)
	if err := registry.WriteTextfile(path); err != nil {
		log.Warn("could not export metrics", zap.Error(err))
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
// Used for boolean flags where any true value should win.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

// resolveStrings returns the first non-empty slice.
func resolveStrings(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
