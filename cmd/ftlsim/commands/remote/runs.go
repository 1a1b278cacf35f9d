package remote

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
	"github.com/marmos91/ftlgc/internal/cli/prompt"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/sim"
)

var (
	submitPolicy   string
	submitWorkload string
	submitSeed     uint64
	submitCommands uint64
	submitLoad     string
	submitSave     string
	submitWait     bool
	submitPoll     time.Duration

	runsOutput   string
	statusOutput string
	reportOutput string
	deleteForce  bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue a simulation run",
	Long: `Queue a run on the server. Flags left unset keep the server's configured
simulation defaults.

Examples:
  ftlsim remote submit --policy cat --commands 500000
  ftlsim remote submit --policy greedy --load aged --wait`,
	RunE: runSubmit,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(runsOutput)
		if err != nil {
			return err
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		runs, err := client.ListRuns(cmd.Context())
		if err != nil {
			return err
		}

		printer := output.NewPrinter(os.Stdout, format, true)
		if format != output.FormatTable {
			return printer.Print(runs)
		}
		if len(runs) == 0 {
			printer.Println("No runs. Queue one with: ftlsim remote submit")
			return nil
		}

		table := output.NewTableData("ID", "Policy", "Workload", "State", "Progress", "Started")
		for _, run := range runs {
			started := "-"
			if !run.StartedAt.IsZero() {
				started = humanize.Time(run.StartedAt)
			}
			table.AddRow(run.ID, run.Policy, run.Workload, string(run.State),
				fmt.Sprintf("%.0f%%", run.Progress()*100), started)
		}
		return printer.Print(table)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show the state of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(statusOutput)
		if err != nil {
			return err
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		info, err := client.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printer := output.NewPrinter(os.Stdout, format, true)
		if format != output.FormatTable {
			return printer.Print(info)
		}
		printRunInfo(printer, info)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Show the report of a completed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(reportOutput)
		if err != nil {
			return err
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		report, err := client.GetReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return output.NewPrinter(os.Stdout, format, true).Print(report)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a finished run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete run %s", id), deleteForce)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}

		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := client.DeleteRun(cmd.Context(), id); err != nil {
			return err
		}
		output.NewPrinter(os.Stdout, output.FormatTable, true).Success(fmt.Sprintf("Run %s deleted", id))
		return nil
	},
}

func init() {
	fs := submitCmd.Flags()
	fs.StringVarP(&submitPolicy, "policy", "p", "", "GC policy (greedy|cost-benefit|cat)")
	fs.StringVarP(&submitWorkload, "workload", "w", "", "Workload (uniform|sequential|hotcold|zipf)")
	fs.Uint64Var(&submitSeed, "seed", 0, "Workload seed")
	fs.Uint64VarP(&submitCommands, "commands", "n", 0, "Workload commands to replay")
	fs.StringVar(&submitLoad, "load", "", "Start from a saved snapshot")
	fs.StringVar(&submitSave, "save", "", "Save a snapshot when the run completes")
	fs.BoolVar(&submitWait, "wait", false, "Wait for the run to finish and print its report")
	fs.DurationVar(&submitPoll, "poll", time.Second, "Polling interval with --wait")

	runsCmd.Flags().StringVarP(&runsOutput, "output", "o", "table", "Output format (table|json|yaml)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "table", "Output format (table|json|yaml)")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete without confirmation")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}

	req := sim.Request{
		Policy:       submitPolicy,
		Workload:     submitWorkload,
		Commands:     submitCommands,
		LoadSnapshot: submitLoad,
		SaveSnapshot: submitSave,
	}
	if cmd.Flags().Changed("seed") {
		req.Seed = &submitSeed
	}

	ctx := cmd.Context()
	info, err := client.CreateRun(ctx, req)
	if err != nil {
		return err
	}

	printer := output.NewPrinter(os.Stdout, output.FormatTable, true)
	printer.Success(fmt.Sprintf("Run %s queued (policy %s)", info.ID, info.Policy))
	if !submitWait {
		return nil
	}

	last := -1
	final, err := client.WaitForRun(ctx, info.ID, submitPoll, func(ri registry.RunInfo) {
		pct := int(ri.Progress() * 100)
		if pct/10 != last/10 {
			printer.Printf("  %s: %d%%\n", ri.State, pct)
			last = pct
		}
	})
	if err != nil {
		return err
	}
	if final.State != registry.RunCompleted {
		return fmt.Errorf("run %s %s: %s", final.ID, final.State, final.Error)
	}

	report, err := client.GetReport(ctx, info.ID)
	if err != nil {
		return err
	}
	printer.Println()
	return printer.Print(report)
}

func printRunInfo(printer *output.Printer, info *registry.RunInfo) {
	pairs := output.KeyValues{
		{"ID", info.ID},
		{"Policy", info.Policy},
		{"Workload", info.Workload},
		{"State", string(info.State)},
		{"Progress", fmt.Sprintf("%s / %s commands", humanize.Comma(int64(info.Done)), humanize.Comma(int64(info.Total)))},
	}
	if info.Error != "" {
		pairs = append(pairs, [2]string{"Error", info.Error})
	}
	_ = printer.Print(pairs)

	if info.Status == nil {
		return
	}
	printer.Section("Dies")
	table := output.NewTableData("Die", "Free", "Open", "Listed", "Bad", "Candidates", "Tick", "GC cycles")
	for _, d := range info.Status.Dies {
		table.AddRow(fmt.Sprint(d.Die), fmt.Sprint(d.Free), fmt.Sprint(d.Open), fmt.Sprint(d.Listed),
			fmt.Sprint(d.Bad), fmt.Sprint(d.Candidates), fmt.Sprint(d.Tick), humanize.Comma(int64(d.GC.Cycles)))
	}
	_ = printer.Print(table)
}
