package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type rowsConfig struct {
	Offset int
	Limit  int
	Out    string
}

func installRowsCmd(app *App) {
	rowsCmd := &cobra.Command{
		Use:   "rows",
		Short: "Read and export previously ingested rows",
	}

	readCmd := &cobra.Command{
		Use:   "read [table](argument)",
		Short: "Read previously ingested rows for a table, with paging",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running rows read command", "tenant", app.config.Tenant, "table", args[0])

			rows, total, err := app.newRowStore().Read(app.config.Tenant, args[0], app.config.Rows.Offset, app.config.Rows.Limit)
			if err != nil {
				return printResult(false, nil, nil, err)
			}
			return printResult(true, count(total), rows, nil)
		},
	}
	readCmd.Flags().IntVar(&app.config.Rows.Offset, "offset", 0, "number of rows to skip")
	readCmd.Flags().IntVar(&app.config.Rows.Limit, "limit", 50, "maximum number of rows to return (0 = all)")

	exportCmd := &cobra.Command{
		Use:   "export [table](argument)",
		Short: "Export a table's ingested rows to a CSV file",
		Long: `Export a table's ingested rows to a CSV file.

Columns are the sorted union of keys across all rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running rows export command", "tenant", app.config.Tenant, "table", args[0])
			return app.exportRun(args[0])
		},
	}
	exportCmd.Flags().StringVar(&app.config.Rows.Out, "out", "", "output file path (defaults to the data directory exports folder)")

	rowsCmd.AddCommand(readCmd, exportCmd)
	app.cmd.AddCommand(rowsCmd)
}

func (a App) exportRun(table string) error {
	out := a.config.Rows.Out
	if out == "" {
		out = filepath.Join(a.config.DataDir, "exports", a.config.Tenant, table+".csv")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0750); err != nil {
		return printResult(false, nil, nil, fmt.Errorf("could not create export directory: %v", err))
	}

	f, err := os.Create(out)
	if err != nil {
		return printResult(false, nil, nil, fmt.Errorf("could not create export file: %v", err))
	}
	defer f.Close()

	n, err := a.newRowStore().ExportCSV(a.config.Tenant, table, f)
	if err != nil {
		return printResult(false, nil, nil, err)
	}
	if err := f.Close(); err != nil {
		return printResult(false, nil, nil, fmt.Errorf("could not close export file: %v", err))
	}
	return printResult(true, count(n), "local:"+out, nil)
}
