package commands

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/cli/output"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// SetBuildInfo records linker-provided build data. Empty values fall back
// to the module version and VCS revision embedded by the Go toolchain.
func SetBuildInfo(version, commit, date string) {
	if bi, ok := debug.ReadBuildInfo(); ok {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			Version = v
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				Commit = s.Value
			case "vcs.time":
				Date = s.Value
			}
		}
	}
	for dst, src := range map[*string]string{&Version: version, &Commit: commit, &Date: date} {
		if src != "" {
			*dst = src
		}
	}
}

type versionInfo struct {
	Version  string   `json:"version" yaml:"version"`
	Commit   string   `json:"commit" yaml:"commit"`
	Built    string   `json:"built" yaml:"built"`
	Go       string   `json:"go" yaml:"go"`
	Platform string   `json:"platform" yaml:"platform"`
	Policies []string `json:"policies" yaml:"policies"`
}

func (v versionInfo) Pairs() [][2]string {
	return [][2]string{
		{"Version", v.Version},
		{"Commit", v.Commit},
		{"Built", v.Built},
		{"Go", v.Go},
		{"Platform", v.Platform},
		{"Policies", strings.Join(v.Policies, ", ")},
	}
}

var versionOutput string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(versionOutput)
		if err != nil {
			return err
		}
		return output.NewPrinter(os.Stdout, format, false).Print(versionInfo{
			Version:  Version,
			Commit:   Commit,
			Built:    Date,
			Go:       runtime.Version(),
			Platform: runtime.GOOS + "/" + runtime.GOARCH,
			Policies: policy.Names(),
		})
	},
}

func init() {
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", "table", "Output format (table|json|yaml)")
}
