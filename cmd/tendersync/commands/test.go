package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func installTestCmd(app *App) {
	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Verify connectivity and credentials against the organization",
		Long:  "Verify connectivity and credentials by calling the organization's WhoAmI function.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running test command")
			return app.testRun(cmd)
		},
	}

	app.cmd.AddCommand(testCmd)
}

func (a App) testRun(cmd *cobra.Command) error {
	whoami, err := a.newClient().WhoAmI(cmd.Context())
	if err != nil {
		return printResult(false, nil, nil, err)
	}
	return printResult(true, nil, whoami, nil)
}
