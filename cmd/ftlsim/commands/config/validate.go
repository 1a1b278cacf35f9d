package config

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
	"github.com/marmos91/ftlgc/pkg/config"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
	"github.com/marmos91/ftlgc/pkg/sim"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration file",
	Long: `Load the configuration file, apply defaults and check every value,
then summarize the simulated array and run.

Settings that are valid but likely to surprise are listed as warnings.

Examples:
  ftlsim config validate
  ftlsim config validate --config ./ftlsim.yaml`,
	RunE: runConfigValidate,
}

// simWarnings lists valid settings that tend to produce misleading runs.
func simWarnings(s sim.Config) []string {
	var out []string
	if s.FTL.Overprovision == 0 {
		out = append(out, "over-provisioning is 0: a full drive leaves GC no room and runs will fail")
	}
	if s.Workload.TrimRatio+s.Workload.ReadRatio > 0 && !s.Precondition {
		out = append(out, "trims and reads without preconditioning only hit slices the workload has written")
	}
	if s.Paranoid {
		out = append(out, "paranoid checks are on: runs will be much slower")
	}
	return out
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	printer := output.NewPrinter(os.Stdout, output.FormatTable, false)
	printer.Success(fmt.Sprintf("%s: OK", path))
	for _, w := range simWarnings(cfg.Simulation) {
		printer.Warning("warning: " + w)
	}

	s := cfg.Simulation
	g := s.Geometry
	p, _ := policy.Lookup(s.Policy)

	printer.Section("Summary")
	return printer.Print(output.KeyValues{
		{"Array", fmt.Sprintf("%d dies x %d blocks x %d pages of %s",
			g.Dies, g.BlocksPerDie, g.PagesPerBlock, humanize.IBytes(uint64(g.PageSize)))},
		{"Raw capacity", humanize.IBytes(uint64(g.TotalSlices()) * uint64(g.PageSize))},
		{"Over-provision", fmt.Sprintf("%.1f%%", s.FTL.Overprovision*100)},
		{"Policy", p.Name()},
		{"Workload", fmt.Sprintf("%s (seed %d)", s.Workload.Kind, s.Workload.Seed)},
		{"Commands", humanize.Comma(int64(s.Commands))},
		{"API", cfg.API.ListenAddress()},
		{"Log level", cfg.Logging.Level},
	})
}
