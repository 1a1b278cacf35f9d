package snapshot

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
	"github.com/marmos91/ftlgc/internal/cli/prompt"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete snapshot %q", name), deleteForce)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Delete(cmd.Context(), name); err != nil {
			return err
		}
		output.NewPrinter(os.Stdout, output.FormatTable, true).Success(fmt.Sprintf("Snapshot %q deleted", name))
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete without confirmation")
}
