package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
	"github.com/marmos91/ftlgc/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration ftlsim would run with: the file, environment
overrides and defaults merged together.

Output is YAML unless --output json is given.

Examples:
  # Show the effective config as YAML
  ftlsim config show

  # Show as JSON
  ftlsim config show --output json

  # See the effect of an override
  FTLSIM_SIMULATION_POLICY=cat ftlsim config show`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if format == output.FormatTable {
		format = output.FormatYAML
	}
	return output.NewPrinter(os.Stdout, format, false).Print(cfg)
}
