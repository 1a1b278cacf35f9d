package sim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// CompareOptions configures Compare.
type CompareOptions struct {
	// Policies to run. Empty means every built-in policy.
	Policies []string

	// Store backs snapshot load and save. Saved snapshots get the policy
	// name appended.
	Store *snapshot.Store

	// Registry, when set, tracks every run so it can be observed.
	Registry *registry.Registry
}

// Compare runs cfg once per policy, concurrently, over identical workloads.
// Reports are returned in policy order. The first failing run cancels the
// others.
func Compare(ctx context.Context, cfg Config, opts CompareOptions) (Comparison, error) {
	names := opts.Policies
	if len(names) == 0 {
		names = policy.Names()
	}

	runs := make([]*Run, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		rc := cfg
		rc.Policy = name
		if cfg.SaveSnapshot != "" {
			rc.SaveSnapshot = fmt.Sprintf("%s-%s", cfg.SaveSnapshot, name)
		}
		run, err := NewRun(rc, opts.Store)
		if err != nil {
			return nil, err
		}
		if seen[run.cfg.Policy] {
			return nil, fmt.Errorf("sim: policy %q listed twice", run.cfg.Policy)
		}
		seen[run.cfg.Policy] = true

		if opts.Registry != nil {
			if err := opts.Registry.RegisterRun(run); err != nil {
				return nil, err
			}
		}
		runs[i] = run
	}

	logger.InfoCtx(ctx, "Comparing GC policies", "policies", names, logger.KeyWorkload, cfg.Workload.Kind)

	reports := make(Comparison, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	for i, run := range runs {
		g.Go(func() error {
			rep, err := run.Execute(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", run.cfg.Policy, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
