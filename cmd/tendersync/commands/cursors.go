package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func installCursorsCmd(app *App) {
	cursorsCmd := &cobra.Command{
		Use:   "cursors",
		Short: "Show and reset per-table synchronization cursors",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the tenant's stored cursors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running cursors show command", "tenant", app.config.Tenant)

			stored, err := app.newCursorStore().List(app.config.Tenant)
			if err != nil {
				return printResult(false, nil, nil, err)
			}
			return printResult(true, count(len(stored)), stored, nil)
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset [tables](optional arguments)",
		Short: "Reset the tenant's stored cursors",
		Long: `Reset the tenant's stored cursors.

With no tables, all of the tenant's cursors are cleared; otherwise only the
named ones. The next poll after a reset is a full catch-up.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running cursors reset command", "tenant", app.config.Tenant, "tables", args)

			cleared, err := app.newCursorStore().Reset(app.config.Tenant, args...)
			if err != nil {
				return printResult(false, nil, nil, err)
			}
			return printResult(true, count(cleared), nil, nil)
		},
	}

	cursorsCmd.AddCommand(showCmd, resetCmd)
	app.cmd.AddCommand(cursorsCmd)
}
