package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
	"github.com/marmos91/ftlgc/pkg/config"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
)

var (
	initForce    bool
	initPolicy   string
	initWorkload string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	Long: `Write a configuration file holding every default, ready to edit.

The file goes to $XDG_CONFIG_HOME/ftlsim/config.yaml unless --config is
given. The policy and workload of the simulation section can be chosen
up front.

Examples:
  ftlsim init
  ftlsim init --config ./ftlsim.yaml --policy cat --workload zipf
  ftlsim init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
	initCmd.Flags().StringVar(&initPolicy, "policy", "", "GC policy of the simulation section")
	initCmd.Flags().StringVar(&initWorkload, "workload", "", "Workload kind of the simulation section")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.GetDefaultConfig()
	if initPolicy != "" {
		p, err := policy.Lookup(initPolicy)
		if err != nil {
			return err
		}
		cfg.Simulation.Policy = p.Name()
	}
	if initWorkload != "" {
		cfg.Simulation.Workload.Kind = initWorkload
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	printer := output.NewPrinter(os.Stdout, output.FormatTable, false)
	printer.Success("Configuration written to " + path)
	printer.Println()
	printer.Println("Next: edit the simulation section, then")
	printer.Println("  ftlsim run        replay the workload with the configured policy")
	printer.Println("  ftlsim compare    replay it once per policy")
	if GetConfigFile() != "" {
		printer.Printf("\nPass --config %s to use this file.\n", path)
	}
	return nil
}
