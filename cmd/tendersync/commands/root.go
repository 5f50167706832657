// Package commands contains the commands of the tendersync CLI.
package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tendersync/tendersync/internal/auth"
	"github.com/tendersync/tendersync/internal/cli"
	"github.com/tendersync/tendersync/internal/constants"
	"github.com/tendersync/tendersync/internal/cursors"
	"github.com/tendersync/tendersync/internal/dataverse"
	"github.com/tendersync/tendersync/internal/ingest"
	"github.com/tendersync/tendersync/internal/registry"
	"github.com/tendersync/tendersync/internal/rowstore"
	"github.com/tendersync/tendersync/internal/submission"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool

	Tenant  string // logical tenant key
	DataDir string

	Dataverse dataverseConfig
	Delivery  deliveryConfig

	Poll   pollConfig
	Rows   rowsConfig
	Submit submitConfig
}

type dataverseConfig struct {
	OrgURL       string
	TenantID     string
	ClientID     string
	ClientSecret string
}

type deliveryConfig struct {
	Dir   string
	Email submission.EmailConfig
	Sftp  submission.SFTPConfig
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "Incremental synchronization connector for Dataverse organizations",
		Long: `tendersync pulls new and changed rows from a Dataverse organization per
tenant and table, tracks per-resource watermarks, and packages submissions
for delivery to local disk, email or SFTP drop boxes.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			slog.Debug("Got app config",
				"tenant", a.config.Tenant,
				"orgURL", a.config.Dataverse.OrgURL,
				"client", auth.Mask(a.config.Dataverse.ClientID))
			return nil
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	installTestCmd(&a)
	installPollCmd(&a)
	installTablesCmd(&a)
	installRowsCmd(&a)
	installCursorsCmd(&a)
	installSubmitCmd(&a)
	installVersionCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	cmd.PersistentFlags().StringVarP(&app.config.Tenant, "tenant", "t", "default", "logical tenant key state is scoped to")
	cmd.PersistentFlags().StringVar(&app.config.DataDir, "data-dir", constants.DefaultDataPath, "directory cursors, registry documents and row logs are stored into")

	cmd.PersistentFlags().StringVar(&app.config.Dataverse.OrgURL, "org-url", "", "Dataverse organization URL (https://<org>.crm.dynamics.com)")
	cmd.PersistentFlags().StringVar(&app.config.Dataverse.TenantID, "directory-id", "", "identity directory (tenant) ID for token acquisition")
	cmd.PersistentFlags().StringVar(&app.config.Dataverse.ClientID, "client-id", "", "application client ID")
	cmd.PersistentFlags().StringVar(&app.config.Dataverse.ClientSecret, "client-secret", "", "application client secret")

	if err := cmd.MarkPersistentFlagDirname("data-dir"); err != nil {
		panic(fmt.Sprintf("failed to mark data-dir flag as directory: %v", err))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a App) newClient() *dataverse.Client {
	l := slog.Default()
	tokens := auth.New(l,
		a.config.Dataverse.TenantID,
		a.config.Dataverse.ClientID,
		a.config.Dataverse.ClientSecret)
	return dataverse.New(l, a.config.Dataverse.OrgURL, tokens)
}

func (a App) newCursorStore() *cursors.Store {
	return cursors.New(slog.Default(), filepath.Join(a.config.DataDir, constants.CursorsFolder))
}

func (a App) newRegistry() *registry.Manager {
	return registry.New(slog.Default(), filepath.Join(a.config.DataDir, constants.RegistryFolder))
}

func (a App) newRowStore() *rowstore.Store {
	return rowstore.New(slog.Default(), filepath.Join(a.config.DataDir, constants.RowsFolder))
}

func (a App) newEngine() *ingest.Engine {
	return ingest.New(slog.Default(), a.newClient(), a.newCursorStore(), a.newRowStore())
}

func (a App) newRouter() *submission.Router {
	local := submission.LocalConfig{Dir: a.config.Delivery.Dir}
	if local.Dir == "" {
		local.Dir = filepath.Join(a.config.DataDir, constants.SubmissionsFolder)
	}
	return submission.NewRouter(slog.Default(), local, a.config.Delivery.Email, a.config.Delivery.Sftp)
}

// result is the envelope every operation prints on stdout.
type result struct {
	Ok      bool   `json:"ok"`
	Count   *int   `json:"count,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// printResult renders the operation envelope. A nil count is omitted.
func printResult(ok bool, count *int, payload any, opErr error) error {
	res := result{Ok: ok, Count: count, Payload: payload}
	if opErr != nil {
		res.Error = opErr.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("could not render result: %v", err)
	}
	return opErr
}

func count(n int) *int {
	return &n
}
