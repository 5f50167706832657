package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tendersync/tendersync/internal/fileutils"
	"github.com/tendersync/tendersync/internal/submission"
)

type submitConfig struct {
	Route string
}

// submitPayload is the caller-supplied submission document.
type submitPayload struct {
	PackageID   string                  `json:"submission_package_id"`
	Route       string                  `json:"route"`
	Answers     map[string]any          `json:"answers"`
	Attachments []submission.Attachment `json:"attachments"`
}

func installSubmitCmd(app *App) {
	submitCmd := &cobra.Command{
		Use:   "submit [payload.json](argument)",
		Short: "Package a submission and deliver it",
		Long: `Package a submission and deliver it through one of the configured routes.

The payload document carries the package id, structured answers, attachment
descriptors and optionally the route; "-" reads the payload from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running submit command", "tenant", app.config.Tenant)
			return app.submitRun(cmd, args[0])
		},
	}

	submitCmd.Flags().StringVar(&app.config.Submit.Route, "route", "", "delivery route (local, email or sftp), overriding the payload's")

	app.cmd.AddCommand(submitCmd)
}

func (a App) submitRun(cmd *cobra.Command, payloadPath string) error {
	payload, err := readPayload(payloadPath)
	if err != nil {
		return printResult(false, nil, nil, err)
	}
	if payload.PackageID == "" {
		payload.PackageID = uuid.NewString()
	}

	routeName := payload.Route
	if a.config.Submit.Route != "" {
		routeName = a.config.Submit.Route
	}

	// Route and payload validation happen before any packaging or delivery I/O.
	route, err := submission.ParseRoute(routeName)
	if err != nil {
		return printResult(false, nil, nil, err)
	}
	if err := submission.Validate(payload.Answers, payload.Attachments); err != nil {
		return printResult(false, nil, nil, err)
	}

	archive, err := submission.Package(payload.Answers, payload.Attachments)
	if err != nil {
		return printResult(false, nil, nil, err)
	}

	location, err := a.newRouter().Deliver(cmd.Context(), route, a.config.Tenant, payload.PackageID, archive)
	if err != nil {
		return printResult(false, nil, nil, err)
	}

	return printResult(true, nil, map[string]string{
		"package_id": payload.PackageID,
		"location":   location,
	}, nil)
}

func readPayload(path string) (p submitPayload, err error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return p, fmt.Errorf("could not open payload file: %v", err)
		}
		defer f.Close()
		r = f
	}

	if err := fileutils.ParseJSON(r, &p); err != nil {
		return p, err
	}
	return p, nil
}
