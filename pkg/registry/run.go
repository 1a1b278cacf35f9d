package registry

import (
	"time"

	"github.com/marmos91/ftlgc/pkg/ftl"
)

// RunState is the lifecycle state of a simulation run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// Terminal reports whether the run has finished, successfully or not.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// Run is a simulation tracked by the registry. Implementations must be safe
// for concurrent use: Info is called from API handlers while the run
// executes.
type Run interface {
	// ID returns the unique run identifier.
	ID() string

	// Info returns a point-in-time view of the run.
	Info() RunInfo
}

// RunInfo describes a run.
type RunInfo struct {
	ID         string      `json:"id"`
	Policy     string      `json:"policy"`
	Workload   string      `json:"workload"`
	State      RunState    `json:"state"`
	StartedAt  time.Time   `json:"started_at,omitzero"`
	FinishedAt time.Time   `json:"finished_at,omitzero"`
	Done       uint64      `json:"done"`  // Commands executed
	Total      uint64      `json:"total"` // Commands planned
	Error      string      `json:"error,omitempty"`
	Status     *ftl.Status `json:"status,omitempty"`
}

// Progress returns the completed fraction in [0, 1].
func (i RunInfo) Progress() float64 {
	if i.Total == 0 {
		return 0
	}
	return float64(i.Done) / float64(i.Total)
}
