package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
	"github.com/marmos91/ftlgc/pkg/sim"
)

var (
	compareFlags    simFlags
	comparePolicies []string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare GC policies on the same workload",
	Long: `Run the configured simulation once per GC policy, concurrently, with an
identical command stream, and print the results side by side.

The policy with the lowest write amplification is highlighted.

Examples:
  # Compare every built-in policy
  ftlsim compare

  # Greedy against cost-age-tradeoff on a hot/cold workload
  ftlsim compare --policies greedy,cat --workload hotcold

  # Save one snapshot per policy (aged-greedy, aged-cat, ...)
  ftlsim compare --save aged`,
	RunE: runCompare,
}

func init() {
	compareFlags.register(compareCmd.Flags(), false)
	compareCmd.Flags().StringSliceVar(&comparePolicies, "policies", nil, "Policies to compare (default: all)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, store, format, cleanup, err := compareFlags.prepare(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := sim.Compare(ctx, cfg.Simulation, sim.CompareOptions{
		Policies: comparePolicies,
		Store:    store,
	})
	if err != nil {
		return err
	}

	printer := output.NewPrinter(os.Stdout, format, true)
	if format != output.FormatTable {
		return printer.Print(results)
	}

	first := results[0]
	printer.Printf("Workload %s, %d commands\n\n", first.Workload, first.Commands)
	if err := printer.Print(results); err != nil {
		return err
	}
	if best := results.Best(); best != nil {
		printer.Println()
		printer.Success(fmt.Sprintf("Lowest write amplification: %s (WAF %.3f)", best.Policy, best.WAF()))
	}
	return nil
}
