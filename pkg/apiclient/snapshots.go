package apiclient

import (
	"context"
	"net/url"

	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// PolicyInfo describes a GC policy offered by the server.
type PolicyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListSnapshots returns the snapshots saved on the server.
func (c *Client) ListSnapshots(ctx context.Context) ([]snapshot.Info, error) {
	var infos []snapshot.Info
	if err := c.get(ctx, "/snapshots", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// DeleteSnapshot removes a saved snapshot.
func (c *Client) DeleteSnapshot(ctx context.Context, name string) error {
	return c.delete(ctx, "/snapshots/"+url.PathEscape(name))
}

// Policies lists the GC policies the server can run.
func (c *Client) Policies(ctx context.Context) ([]PolicyInfo, error) {
	var policies []PolicyInfo
	if err := c.get(ctx, "/policies", &policies); err != nil {
		return nil, err
	}
	return policies, nil
}

// Ready reports whether the server is ready to accept runs.
func (c *Client) Ready(ctx context.Context) error {
	return c.get(ctx, "/health/ready", nil)
}
