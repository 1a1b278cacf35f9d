// Package commands implements the ftlsim command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/cmd/ftlsim/commands/config"
	"github.com/marmos91/ftlgc/cmd/ftlsim/commands/remote"
	"github.com/marmos91/ftlgc/cmd/ftlsim/commands/snapshot"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ftlsim",
	Short: "ftlsim - flash translation layer garbage collection simulator",
	Long: `ftlsim replays host workloads against a simulated NAND array and
measures how victim selection policies (greedy, cost-benefit, cost-age-tradeoff)
affect write amplification, GC work and wear.

Configuration is read from $XDG_CONFIG_HOME/ftlsim/config.yaml when present.
Every option can be overridden with FTLSIM_<SECTION>_<KEY> environment
variables, e.g. FTLSIM_SIMULATION_POLICY=cat.

Use "ftlsim [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command named by os.Args.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ftlsim/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(policiesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(snapshot.Cmd)
	rootCmd.AddCommand(remote.Cmd)
}

// GetConfigFile returns the --config flag.
func GetConfigFile() string {
	return cfgFile
}
