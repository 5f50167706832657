package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func installTablesCmd(app *App) {
	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "Discover, register and list synchronized tables",
	}

	var prefix string
	findCmd := &cobra.Command{
		Use:   "find",
		Short: "Discover table definitions in the organization",
		Long: `Discover table definitions in the organization's schema catalog.

The catalog is scanned in full and filtered client-side; an optional prefix
narrows the match on logical names, case-insensitively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running tables find command", "prefix", prefix)

			tables, err := app.newClient().FindTables(cmd.Context(), prefix)
			if err != nil {
				return printResult(false, nil, nil, err)
			}
			return printResult(true, count(len(tables)), tables, nil)
		},
	}
	findCmd.Flags().StringVar(&prefix, "prefix", "", "case-insensitive logical name prefix filter")

	registerCmd := &cobra.Command{
		Use:   "register [tables](arguments)",
		Short: "Register logical tables for the tenant",
		Long: `Register logical tables for the tenant.

Registration is an idempotent union-merge: already registered tables are
kept, duplicates collapse, and the resulting list is sorted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running tables register command", "tenant", app.config.Tenant)

			tables, err := app.newRegistry().Register(app.config.Tenant, args)
			if err != nil {
				return printResult(false, nil, nil, err)
			}
			return printResult(true, count(len(tables)), tables, nil)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the tables registered for the tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running tables list command", "tenant", app.config.Tenant)

			tables, err := app.newRegistry().List(app.config.Tenant)
			if err != nil {
				return printResult(false, nil, nil, err)
			}
			return printResult(true, count(len(tables)), tables, nil)
		},
	}

	tablesCmd.AddCommand(findCmd, registerCmd, listCmd)
	app.cmd.AddCommand(tablesCmd)
}
