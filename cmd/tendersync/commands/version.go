package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tendersync/tendersync/internal/constants"
)

func installVersionCmd(app *App) {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Returns the version of the application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s\t%s\n", constants.CmdName, constants.Version)
			return nil
		},
	}

	app.cmd.AddCommand(versionCmd)
}
