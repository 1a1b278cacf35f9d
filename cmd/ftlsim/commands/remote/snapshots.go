package remote

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
)

var snapshotsOutput string

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots saved on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(snapshotsOutput)
		if err != nil {
			return err
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		infos, err := client.ListSnapshots(cmd.Context())
		if err != nil {
			return err
		}

		printer := output.NewPrinter(os.Stdout, format, true)
		if format != output.FormatTable {
			return printer.Print(infos)
		}
		if len(infos) == 0 {
			printer.Println("No snapshots saved on the server.")
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
	snapshotsCmd.Flags().StringVarP(&snapshotsOutput, "output", "o", "table", "Output format (table|json|yaml)")
}
