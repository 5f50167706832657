package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tendersync/tendersync/internal/constants"
	"github.com/tendersync/tendersync/internal/ingest"
)

type pollConfig struct {
	Tables     []string
	ForceFull  bool
	Since      string
	MaxPages   int
	MaxRecords int
	PageSize   int
}

func installPollCmd(app *App) {
	pollCmd := &cobra.Command{
		Use:   "poll [tables](optional arguments)",
		Short: "Pull new and changed rows for the tenant's tables",
		Long: `Pull new and changed rows for the given logical tables.

If no tables are provided, all tables registered for the tenant are polled.
Each table is an independent unit of work: a failing table does not stop its
siblings, and the result reports partial success per table.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Persist viper config if no args passed
			if len(args) == 0 && len(app.config.Poll.Tables) > 0 {
				args = app.config.Poll.Tables
			}
			app.config.Poll.Tables = args

			slog.Info("Running poll command")
			return app.pollRun(cmd)
		},
	}

	pollCmd.Flags().BoolVar(&app.config.Poll.ForceFull, "force-full", false, "ignore stored cursors and pull from the beginning")
	pollCmd.Flags().StringVar(&app.config.Poll.Since, "since", "", "one-shot cursor override for this call (ISO-8601 UTC, e.g. 2025-09-08T21:54:24Z)")
	pollCmd.Flags().IntVar(&app.config.Poll.MaxPages, "max-pages", constants.DefaultMaxPages, "stop after this many server pages (0 = unbounded)")
	pollCmd.Flags().IntVar(&app.config.Poll.MaxRecords, "max-records", 0, "stop after this many rows (0 = unbounded)")
	pollCmd.Flags().IntVar(&app.config.Poll.PageSize, "page-size", constants.DefaultPageSize, "page size preference sent to the server")

	app.cmd.AddCommand(pollCmd)
}

func (a App) pollRun(cmd *cobra.Command) error {
	tables := a.config.Poll.Tables
	if len(tables) == 0 {
		var err error
		if tables, err = a.newRegistry().List(a.config.Tenant); err != nil {
			return printResult(false, nil, nil, err)
		}
	}
	if len(tables) == 0 {
		return printResult(false, nil, nil, fmt.Errorf("no tables given and none registered for tenant %s", a.config.Tenant))
	}

	results, err := a.newEngine().Poll(cmd.Context(), a.config.Tenant, tables, ingest.PollOptions{
		ForceFull:  a.config.Poll.ForceFull,
		Since:      a.config.Poll.Since,
		MaxPages:   a.config.Poll.MaxPages,
		MaxRecords: a.config.Poll.MaxRecords,
		PageSize:   a.config.Poll.PageSize,
	})

	processed := 0
	for _, r := range results {
		processed += r.Processed
	}
	return printResult(err == nil, count(processed), results, err)
}
