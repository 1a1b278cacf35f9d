// Package sim drives end-to-end simulation runs: it wires a NAND pipeline, an
// FTL with a chosen GC policy and a workload generator together, replays the
// workload and reports write amplification, wear and GC activity.
package sim

import (
	"fmt"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
	"github.com/marmos91/ftlgc/pkg/nand"
	"github.com/marmos91/ftlgc/pkg/workload"
)

// DefaultQueueDepth is the number of generated commands buffered ahead of
// the FTL.
const DefaultQueueDepth = 256

// Config describes one simulation run.
type Config struct {
	// Geometry is the simulated array.
	Geometry flash.Geometry `mapstructure:"geometry" yaml:"geometry"`

	// FTL holds over-provisioning and GC trigger tunables.
	FTL ftl.Config `mapstructure:"ftl" yaml:"ftl"`

	// Pipeline configures the NAND request queue.
	Pipeline nand.Config `mapstructure:"pipeline" yaml:"pipeline"`

	// Policy is the victim scoring policy: greedy, cost-benefit or cat.
	Policy string `mapstructure:"policy" validate:"required" yaml:"policy"`

	// Workload selects the host command stream.
	Workload workload.Config `mapstructure:"workload" yaml:"workload"`

	// Commands is the number of workload commands to replay, not counting
	// preconditioning.
	Commands uint64 `mapstructure:"commands" validate:"required,min=1" yaml:"commands"`

	// Precondition writes the whole logical space once before the workload.
	Precondition bool `mapstructure:"precondition" yaml:"precondition"`

	// Paranoid checks the victim registry after every GC mutation.
	Paranoid bool `mapstructure:"paranoid" yaml:"paranoid"`

	// Verify reads back every mapped slice and checks FTL consistency
	// after the workload.
	Verify bool `mapstructure:"verify" yaml:"verify"`

	// QueueDepth is the command channel capacity.
	// Default: 256
	QueueDepth int `mapstructure:"queue_depth" validate:"omitempty,min=1" yaml:"queue_depth"`

	// LoadSnapshot names a snapshot whose wear state seeds the array.
	LoadSnapshot string `mapstructure:"load_snapshot" yaml:"load_snapshot,omitempty"`

	// SaveSnapshot names the snapshot written when the run completes.
	SaveSnapshot string `mapstructure:"save_snapshot" yaml:"save_snapshot,omitempty"`
}

// DefaultConfig returns a preconditioned hot/cold run on the default array.
func DefaultConfig() Config {
	return Config{
		Geometry:     flash.DefaultGeometry(),
		FTL:          ftl.DefaultConfig(),
		Policy:       policy.NameGreedy,
		Workload:     workload.DefaultConfig(),
		Commands:     100_000,
		Precondition: true,
		QueueDepth:   DefaultQueueDepth,
	}
}

// check validates the parts of c the run depends on and canonicalizes the
// policy name.
func (c *Config) check() error {
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	p, err := policy.Lookup(c.Policy)
	if err != nil {
		return err
	}
	c.Policy = p.Name()
	if c.Commands == 0 {
		return fmt.Errorf("sim: commands must be positive")
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	return nil
}
