package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
)

var policiesOutput string

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List the available GC policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(policiesOutput)
		if err != nil {
			return err
		}

		type policyInfo struct {
			Name        string `json:"name" yaml:"name"`
			Description string `json:"description" yaml:"description"`
		}
		table := output.NewTableData("Name", "Description")
		infos := make([]policyInfo, 0, len(policy.Names()))
		for _, name := range policy.Names() {
			p, err := policy.Lookup(name)
			if err != nil {
				return err
			}
			table.AddRow(p.Name(), policy.Describe(p))
			infos = append(infos, policyInfo{Name: p.Name(), Description: policy.Describe(p)})
		}

		printer := output.NewPrinter(os.Stdout, format, true)
		if format == output.FormatTable {
			return printer.Print(table)
		}
		return printer.Print(infos)
	},
}

func init() {
	policiesCmd.Flags().StringVarP(&policiesOutput, "output", "o", "table", "Output format (table|json|yaml)")
}
