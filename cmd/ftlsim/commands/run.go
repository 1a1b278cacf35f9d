package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marmos91/ftlgc/internal/cli/output"
	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/config"
	"github.com/marmos91/ftlgc/pkg/sim"
	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// simFlags are the simulation overrides shared by run and compare.
type simFlags struct {
	policy       string
	workload     string
	commands     uint64
	seed         uint64
	trimRatio    float64
	readRatio    float64
	precondition bool
	verify       bool
	paranoid     bool
	load         string
	save         string
	output       string
}

func (f *simFlags) register(fs *pflag.FlagSet, withPolicy bool) {
	if withPolicy {
		fs.StringVarP(&f.policy, "policy", "p", "", "GC policy: greedy, cost-benefit, cat")
	}
	fs.StringVarP(&f.workload, "workload", "w", "", "Workload: uniform, hotcold, sequential, zipf")
	fs.Uint64VarP(&f.commands, "commands", "n", 0, "Number of workload commands to replay")
	fs.Uint64Var(&f.seed, "seed", 0, "Workload seed")
	fs.Float64Var(&f.trimRatio, "trim-ratio", 0, "Share of commands that are trims")
	fs.Float64Var(&f.readRatio, "read-ratio", 0, "Share of commands that are reads")
	fs.BoolVar(&f.precondition, "precondition", true, "Write the whole logical space before the workload")
	fs.BoolVar(&f.verify, "verify", false, "Read back every slice and check consistency after the run")
	fs.BoolVar(&f.paranoid, "paranoid", false, "Check the victim registry after every GC mutation")
	fs.StringVar(&f.load, "load", "", "Seed wear from this snapshot")
	fs.StringVar(&f.save, "save", "", "Save wear to this snapshot when done")
	fs.StringVarP(&f.output, "output", "o", "table", "Output format (table|json|yaml)")
}

// apply copies the flags the user set onto cfg. Unset flags keep the
// configured value.
func (f *simFlags) apply(fs *pflag.FlagSet, cfg *sim.Config) {
	if fs.Changed("policy") {
		cfg.Policy = f.policy
	}
	if fs.Changed("workload") {
		cfg.Workload.Kind = f.workload
	}
	if fs.Changed("commands") {
		cfg.Commands = f.commands
	}
	if fs.Changed("seed") {
		cfg.Workload.Seed = f.seed
	}
	if fs.Changed("trim-ratio") {
		cfg.Workload.TrimRatio = f.trimRatio
	}
	if fs.Changed("read-ratio") {
		cfg.Workload.ReadRatio = f.readRatio
	}
	if fs.Changed("precondition") {
		cfg.Precondition = f.precondition
	}
	if fs.Changed("verify") {
		cfg.Verify = f.verify
	}
	if fs.Changed("paranoid") {
		cfg.Paranoid = f.paranoid
	}
	if fs.Changed("load") {
		cfg.LoadSnapshot = f.load
	}
	if fs.Changed("save") {
		cfg.SaveSnapshot = f.save
	}
}

// prepare loads configuration, applies the flags, sets up logging and
// observability and opens the snapshot store when the run needs it. The
// returned cleanup must be called when the command finishes.
func (f *simFlags) prepare(cmd *cobra.Command) (*config.Config, *snapshot.Store, output.Format, func(), error) {
	format, err := output.ParseFormat(f.output)
	if err != nil {
		return nil, nil, "", nil, err
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, "", nil, err
	}
	f.apply(cmd.Flags(), &cfg.Simulation)

	// Keep machine-readable output parseable.
	if format != output.FormatTable && cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	if err := InitLogger(cfg); err != nil {
		return nil, nil, "", nil, err
	}
	logger.Debug("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	stopObs, err := initObservability(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, "", nil, err
	}

	var store *snapshot.Store
	if cfg.Simulation.LoadSnapshot != "" || cfg.Simulation.SaveSnapshot != "" {
		store, err = openSnapshots(cfg)
		if err != nil {
			stopObs()
			return nil, nil, "", nil, err
		}
	}

	cleanup := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Error("snapshot store close error", "error", err)
			}
		}
		stopObs()
	}
	return cfg, store, format, cleanup, nil
}

var runFlags simFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation",
	Long: `Replay a workload against the simulated array with one GC policy and print
the resulting write amplification, GC activity and wear.

Settings come from the configuration file; flags override them for this run.
Press Ctrl+C to cancel a run in progress.

Examples:
  # Run the configured simulation
  ftlsim run

  # Cost-benefit on a zipf workload, 1M commands
  ftlsim run --policy cost-benefit --workload zipf --commands 1000000

  # Save the wear state for a later run and print JSON
  ftlsim run --policy cat --save aged -o json

  # Continue from a worn array
  ftlsim run --policy greedy --load aged`,
	RunE: runRun,
}

func init() {
	runFlags.register(runCmd.Flags(), true)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, store, format, cleanup, err := runFlags.prepare(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := sim.NewRun(cfg.Simulation, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressDone := make(chan struct{})
	go reportProgress(ctx, run, progressDone)

	report, err := run.Execute(ctx)
	close(progressDone)
	if err != nil {
		return fmt.Errorf("run %s: %w", run.ID(), err)
	}

	printer := output.NewPrinter(os.Stdout, format, true)
	return printer.Print(report)
}

// reportProgress logs run progress every few seconds until done is closed.
func reportProgress(ctx context.Context, run *sim.Run, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			info := run.Info()
			logger.Info("Simulation progress",
				logger.KeyRunID, info.ID,
				"done", info.Done,
				"total", info.Total,
				"percent", fmt.Sprintf("%.1f", info.Progress()*100))
		}
	}
}
