package apiclient

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/sim"
)

// ListRuns returns every run the server knows about, without FTL status.
func (c *Client) ListRuns(ctx context.Context) ([]registry.RunInfo, error) {
	var runs []registry.RunInfo
	if err := c.get(ctx, "/runs", &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns one run including its live FTL status.
func (c *Client) GetRun(ctx context.Context, id string) (*registry.RunInfo, error) {
	var info registry.RunInfo
	if err := c.get(ctx, "/runs/"+url.PathEscape(id), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetReport returns the report of a completed run.
func (c *Client) GetReport(ctx context.Context, id string) (*sim.Report, error) {
	var report sim.Report
	if err := c.get(ctx, "/runs/"+url.PathEscape(id)+"/report", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// CreateRun submits a run. The server queues it and returns immediately.
func (c *Client) CreateRun(ctx context.Context, req sim.Request) (*registry.RunInfo, error) {
	var info registry.RunInfo
	if err := c.post(ctx, "/runs", req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeleteRun forgets a finished run.
func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.delete(ctx, "/runs/"+url.PathEscape(id))
}

// WaitForRun polls a run until it reaches a terminal state or ctx is done.
// onPoll, if set, sees every intermediate state.
func (c *Client) WaitForRun(ctx context.Context, id string, interval time.Duration, onPoll func(registry.RunInfo)) (*registry.RunInfo, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := c.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		if info.State.Terminal() {
			return info, nil
		}
		if onPoll != nil {
			onPoll(*info)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for run %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
