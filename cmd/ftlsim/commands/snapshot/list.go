package snapshot

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(listOutput)
		if err != nil {
			return err
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		infos, err := store.List(cmd.Context())
		if err != nil {
			return err
		}

		printer := output.NewPrinter(os.Stdout, format, true)
		if format != output.FormatTable {
			return printer.Print(infos)
		}
		if len(infos) == 0 {
			printer.Println("No snapshots saved. Create one with: ftlsim run --save <name>")
			return nil
		}

		table := output.NewTableData("Name", "Policy", "Workload", "Mean wear", "Created", "Run")
		for _, info := range infos {
			table.AddRow(info.Name, info.Policy, info.Workload,
				fmt.Sprintf("%.1f", info.MeanWear), humanize.Time(info.CreatedAt), info.RunID)
		}
		return printer.Print(table)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}
