package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/tendersync/tendersync/internal/cli"
)

func TestInitViperConfig(t *testing.T) {
	tests := map[string]struct {
		configContent string
		noConfigFile  bool
		env           map[string]string

		wantTenant string
		wantErr    bool
	}{
		"Explicit config file is loaded": {
			configContent: "tenant: acme\n",
			wantTenant:    "acme",
		},
		"Missing config file falls back to defaults": {
			noConfigFile: true,
		},
		"Environment variables are bound": {
			noConfigFile: true,
			env:          map[string]string{"TENDERSYNC_TENANT": "acme-env"},
			wantTenant:   "acme-env",
		},
		"Config file loses to the environment": {
			configContent: "tenant: acme\n",
			env:           map[string]string{"TENDERSYNC_TENANT": "acme-env"},
			wantTenant:    "acme-env",
		},

		"Error with an invalid config file": {
			configContent: "tenant: [unclosed\n",
			wantErr:       true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cmd := &cobra.Command{Use: "tendersync"}
			cli.InstallConfigFlag(cmd)

			if !tc.noConfigFile {
				path := filepath.Join(t.TempDir(), "tendersync.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tc.configContent), 0600))
				require.NoError(t, cmd.PersistentFlags().Set("config", path))
			}

			vip := viper.New()
			err := cli.InitViperConfig("tendersync", cmd, vip)
			if tc.wantErr {
				require.Error(t, err, "InitViperConfig should fail")
				return
			}
			require.NoError(t, err, "InitViperConfig should not fail")
			require.Equal(t, tc.wantTenant, vip.GetString("tenant"))
		})
	}
}
