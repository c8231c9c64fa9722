package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/schemaward/internal/cli"
	"github.com/pthm/schemaward/pkg/settings"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Read or toggle maintenance mode",
	Long: `Read or toggle the maintenance_mode flag in platform_settings. Services
read the flag to refuse writes while an operator repairs data.`,
}

var maintenanceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether maintenance mode is on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(cmd, func(ctx context.Context, s *settings.Store) error {
			on, err := s.Maintenance(ctx)
			if err != nil {
				return err
			}
			if on {
				fmt.Println("Maintenance mode: on")
			} else {
				fmt.Println("Maintenance mode: off")
			}
			return nil
		})
	},
}

var maintenanceOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Turn maintenance mode on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setMaintenance(cmd, true)
	},
}

var maintenanceOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Turn maintenance mode off",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setMaintenance(cmd, false)
	},
}

func init() {
	for _, c := range []*cobra.Command{maintenanceStatusCmd, maintenanceOnCmd, maintenanceOffCmd} {
		addDBFlags(c)
		maintenanceCmd.AddCommand(c)
	}
}

func setMaintenance(cmd *cobra.Command, on bool) error {
	return withSettings(cmd, func(ctx context.Context, s *settings.Store) error {
		if err := s.SetMaintenance(ctx, on); err != nil {
			return err
		}
		if !quiet {
			state := "off"
			if on {
				state = "on"
			}
			fmt.Printf("Maintenance mode turned %s.\n", state)
		}
		return nil
	})
}

func withSettings(cmd *cobra.Command, fn func(context.Context, *settings.Store) error) error {
	ctx := commandContext(cmd)
	db, d, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	err = fn(ctx, settings.New(db, d, settings.WithLogger(log)))
	switch {
	case err == nil:
		return nil
	case settings.IsNotInstalledErr(err):
		return cli.MigrationError(fmt.Sprintf("%s does not exist; run 'schemaward migrate' first", settings.Table), nil)
	default:
		return cli.GeneralError("maintenance mode", err)
	}
}
