// Package remote implements the subcommands that drive a running
// 'ftlsim serve' instance over its HTTP API.
package remote

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/pkg/apiclient"
	"github.com/marmos91/ftlgc/pkg/config"
)

var (
	serverURL     string
	serverTimeout time.Duration
)

// Cmd is the remote subcommand.
var Cmd = &cobra.Command{
	Use:   "remote",
	Short: "Submit and inspect runs on an ftlsim server",
	Long: `Drive a server started with 'ftlsim serve'.

The server URL defaults to FTLSIM_SERVER, then to the API address of the
local configuration.

Subcommands:
  submit     Queue a simulation run
  runs       List runs
  status     Show the state of a run
  report     Show the report of a completed run
  delete     Remove a finished run
  snapshots  List snapshots saved on the server`,
}

func init() {
	Cmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL (default: $FTLSIM_SERVER or the configured api address)")
	Cmd.PersistentFlags().DurationVar(&serverTimeout, "timeout", apiclient.DefaultTimeout, "Timeout of each API request")

	Cmd.AddCommand(submitCmd)
	Cmd.AddCommand(runsCmd)
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(reportCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(snapshotsCmd)
}

// newClient resolves the server URL and returns a client for it.
func newClient(cmd *cobra.Command) (*apiclient.Client, error) {
	opt := apiclient.WithTimeout(serverTimeout)
	if serverURL != "" {
		return apiclient.New(serverURL, opt), nil
	}
	if env := os.Getenv("FTLSIM_SERVER"); env != "" {
		return apiclient.New(env, opt), nil
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return apiclient.New("http://"+cfg.API.ListenAddress(), opt), nil
}
