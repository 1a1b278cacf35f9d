// Package snapshot implements the wear snapshot subcommands.
package snapshot

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/pkg/config"
	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// Cmd is the snapshot subcommand.
var Cmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage saved wear snapshots",
	Long: `Snapshots hold the erase counts, retired blocks and aging clocks of an
array at the end of a run. Load one with 'ftlsim run --load <name>' to start
a simulation on an already worn drive.

Subcommands:
  list    List saved snapshots
  show    Show the wear of a snapshot
  delete  Delete a snapshot`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(deleteCmd)
}

// openStore loads configuration and opens the snapshot store it names.
func openStore(cmd *cobra.Command) (*snapshot.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	store, err := snapshot.Open(cfg.Snapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return store, nil
}
