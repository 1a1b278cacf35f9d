// Package config implements 'ftlsim config'.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the simulator configuration",
	Long: `Check a configuration file and print the settings a run would use,
including geometry, GC policy and workload.

Create a file with 'ftlsim init'.`,
}

func init() {
	Cmd.AddCommand(validateCmd, showCmd, schemaCmd)
}
