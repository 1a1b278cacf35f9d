package snapshot

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the wear of a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(showOutput)
		if err != nil {
			return err
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		snap, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printer := output.NewPrinter(os.Stdout, format, true)
		if format != output.FormatTable {
			return printer.Print(snap)
		}

		g := snap.State.Geometry
		if err := printer.Print(output.KeyValues{
			{"Name", snap.Name},
			{"Run", snap.RunID},
			{"Policy", snap.Policy},
			{"Workload", snap.Workload},
			{"Created", humanize.Time(snap.CreatedAt)},
			{"Array", fmt.Sprintf("%d dies x %d blocks x %d pages", g.Dies, g.BlocksPerDie, g.PagesPerBlock)},
			{"Host writes", humanize.Comma(int64(snap.Stats.HostWrites))},
			{"Erases", humanize.Comma(int64(snap.Stats.Erases))},
		}); err != nil {
			return err
		}

		printer.Section("Wear per die")
		table := output.NewTableData("Die", "Min", "Mean", "Max", "Retired", "Clock")
		for die, ds := range snap.State.Dies {
			lo, hi, sum := ^uint32(0), uint32(0), uint64(0)
			for _, c := range ds.EraseCounts {
				lo = min(lo, c)
				hi = max(hi, c)
				sum += uint64(c)
			}
			if len(ds.EraseCounts) == 0 {
				lo = 0
			}
			retired := 0
			for _, bad := range ds.Bad {
				if bad {
					retired++
				}
			}
			mean := 0.0
			if n := len(ds.EraseCounts); n > 0 {
				mean = float64(sum) / float64(n)
			}
			table.AddRow(fmt.Sprint(die), fmt.Sprint(lo), fmt.Sprintf("%.1f", mean), fmt.Sprint(hi),
				fmt.Sprint(retired), fmt.Sprint(ds.Tick))
		}
		return printer.Print(table)
	},
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "table", "Output format (table|json|yaml)")
}
