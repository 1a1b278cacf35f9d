package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ftlgc/pkg/api"
	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl"
	"github.com/marmos91/ftlgc/pkg/nand"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/sim"
	"github.com/marmos91/ftlgc/pkg/snapshot"
	"github.com/marmos91/ftlgc/pkg/workload"
)

func baseConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Geometry = flash.Geometry{Dies: 2, BlocksPerDie: 16, PagesPerBlock: 8, PageSize: 64}
	cfg.FTL = ftl.DefaultConfig()
	cfg.FTL.Overprovision = 0.5
	cfg.Pipeline = nand.Config{Workers: 2, Slots: 16, BuffersPerDie: 2}
	cfg.Workload = workload.DefaultConfig()
	cfg.Commands = 800
	cfg.QueueDepth = 8
	return cfg
}

// newServer runs the real API with a launcher and an in-memory snapshot
// store behind an httptest server.
func newServer(t *testing.T) *Client {
	t.Helper()

	store, err := snapshot.Open(snapshot.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := registry.NewRegistry()
	reg.SetSnapshotStore(store)

	launcher := sim.NewLauncher(baseConfig(), store, reg, sim.LauncherConfig{Workers: 2, QueueSize: 4})
	launcher.Start(context.Background())
	t.Cleanup(func() { launcher.Stop(5 * time.Second) })

	server := httptest.NewServer(api.NewRouter(reg, launcher))
	t.Cleanup(server.Close)

	return New(server.URL + "/")
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	client := New("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", client.baseURL)
}

func TestRunLifecycle(t *testing.T) {
	client := newServer(t)
	ctx := context.Background()

	require.NoError(t, client.Ready(ctx))

	info, err := client.CreateRun(ctx, sim.Request{Policy: "cat", SaveSnapshot: "aged"})
	require.NoError(t, err)
	require.NotEmpty(t, info.ID)
	assert.Equal(t, "cat", info.Policy)

	final, err := client.WaitForRun(ctx, info.ID, 10*time.Millisecond, func(ri registry.RunInfo) {
		assert.Equal(t, info.ID, ri.ID)
	})
	require.NoError(t, err)
	require.Equal(t, registry.RunCompleted, final.State, final.Error)
	require.NotNil(t, final.Status)
	assert.Equal(t, "cat", final.Status.Policy)

	report, err := client.GetReport(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, report.RunID)
	assert.Equal(t, uint64(800+128), report.Commands)
	assert.GreaterOrEqual(t, report.WAF(), 1.0)

	runs, err := client.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Status)

	snaps, err := client.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "aged", snaps[0].Name)
	assert.Equal(t, info.ID, snaps[0].RunID)

	require.NoError(t, client.DeleteSnapshot(ctx, "aged"))
	require.NoError(t, client.DeleteRun(ctx, info.ID))

	_, err = client.GetRun(ctx, info.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsNotFound())
}

func TestCreateRunRejectsBadPolicy(t *testing.T) {
	client := newServer(t)

	_, err := client.CreateRun(context.Background(), sim.Request{Policy: "lru"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Detail, "lru")
}

func TestPolicies(t *testing.T) {
	client := newServer(t)

	policies, err := client.Policies(context.Background())
	require.NoError(t, err)
	require.Len(t, policies, 3)
	assert.Equal(t, "cat", policies[0].Name)
	assert.NotEmpty(t, policies[0].Description)
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantTitle  string
		wantDetail string
	}{
		{
			name:       "problem document",
			status:     http.StatusConflict,
			body:       `{"type":"about:blank","title":"Conflict","status":409,"detail":"run has no report yet"}`,
			wantTitle:  "Conflict",
			wantDetail: "run has no report yet",
		},
		{
			name:       "unhealthy envelope",
			status:     http.StatusServiceUnavailable,
			body:       `{"status":"unhealthy","timestamp":"2024-01-01T00:00:00Z","error":"registry not initialized"}`,
			wantTitle:  "Service Unavailable",
			wantDetail: "registry not initialized",
		},
		{
			name:       "plain text",
			status:     http.StatusBadGateway,
			body:       "upstream down\n",
			wantTitle:  "Bad Gateway",
			wantDetail: "upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(tt.status, []byte(tt.body))
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantTitle, apiErr.Title)
			assert.Equal(t, tt.wantDetail, apiErr.Detail)
		})
	}
}

func TestDoSendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		var req sim.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "greedy", req.Policy)

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"ok","data":{"id":"r1","policy":"greedy","state":"pending"}}`))
	}))
	defer server.Close()

	info, err := New(server.URL).CreateRun(context.Background(), sim.Request{Policy: "greedy"})
	require.NoError(t, err)
	assert.Equal(t, "r1", info.ID)
	assert.Equal(t, registry.RunPending, info.State)
}

func TestWaitForRunHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","data":{"id":"r1","state":"running"}}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(server.URL).WaitForRun(ctx, "r1", 10*time.Millisecond, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}

func TestOptions(t *testing.T) {
	hc := &http.Client{}
	c := New("http://localhost:8080", WithHTTPClient(hc), WithTimeout(time.Second))
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, time.Second, c.httpClient.Timeout)

	assert.Equal(t, DefaultTimeout, New("http://localhost:8080").httpClient.Timeout)
}
