package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/marmos91/ftlgc/internal/logger"
)

// recordSpans swaps the global tracer for one backed by an in-memory
// exporter and restores the previous tracer on cleanup.
func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	previous := tracer
	tracer = tp.Tracer("test")
	t.Cleanup(func() {
		tracer = previous
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "ftlsim", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	_, span := StartSpan(ctx, SpanGCCycle)
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestTracerReturnsNoOp(t *testing.T) {
	previous := tracer
	tracer = nil
	defer func() { tracer = previous }()

	require.NotNil(t, Tracer())
}

func TestStartGCSpan(t *testing.T) {
	exp := recordSpans(t)

	ctx, span := StartGCSpan(context.Background(), SpanGCCycle, 3, "cat", Block(17))
	SetAttributes(ctx, Migrated(5), Score(42))
	RecordError(ctx, errors.New("erase failed"))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	got := spans[0]

	assert.Equal(t, SpanGCCycle, got.Name)
	assert.Equal(t, codes.Error, got.Status.Code)
	assert.Equal(t, "erase failed", got.Status.Description)

	attrs := attrMap(got.Attributes)
	assert.Equal(t, int64(3), attrs[AttrDie].AsInt64())
	assert.Equal(t, "cat", attrs[AttrPolicy].AsString())
	assert.Equal(t, int64(17), attrs[AttrBlock].AsInt64())
	assert.Equal(t, int64(5), attrs[AttrMigrated].AsInt64())
	assert.Equal(t, int64(42), attrs[AttrScore].AsInt64())
}

func TestStartSimSpan(t *testing.T) {
	exp := recordSpans(t)

	ctx, span := StartSimSpan(context.Background(), "run-1", "uniform", "greedy")
	AddEvent(ctx, "gc.exhausted", Die(0))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanSimRun, spans[0].Name)

	attrs := attrMap(spans[0].Attributes)
	assert.Equal(t, "run-1", attrs[AttrRunID].AsString())
	assert.Equal(t, "uniform", attrs[AttrWorkload].AsString())
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "gc.exhausted", spans[0].Events[0].Name)
}

func TestIDsWithoutSpan(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", TraceID(ctx))
	assert.Equal(t, "", SpanID(ctx))
	require.NotNil(t, SpanFromContext(ctx))

	require.NotPanics(t, func() {
		RecordError(ctx, nil)
		SetStatus(ctx, codes.Ok, "ok")
	})
}

func TestWithLogContext(t *testing.T) {
	recordSpans(t)

	base := logger.WithContext(context.Background(), logger.NewLogContext("run-1"))
	assert.Equal(t, base, WithLogContext(base), "no span leaves context unchanged")

	ctx, span := StartSpan(base, SpanSimRun)
	defer span.End()

	ctx = WithLogContext(ctx)
	lc := logger.FromContext(ctx)
	require.NotNil(t, lc)
	assert.Equal(t, "run-1", lc.RunID)
	assert.Equal(t, TraceID(ctx), lc.TraceID)
	assert.Equal(t, SpanID(ctx), lc.SpanID)
	assert.NotEmpty(t, lc.TraceID)
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		attr attribute.KeyValue
		key  string
	}{
		{Die(1), AttrDie},
		{Block(2), AttrBlock},
		{LSA(3), AttrLSA},
		{VSA(4), AttrVSA},
		{Invalid(5), AttrInvalid},
		{FreeBlocks(6), AttrFree},
		{Writes(7), AttrWrites},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.key, string(tt.attr.Key))
		assert.Equal(t, int64(i+1), tt.attr.Value.AsInt64())
	}

	assert.Equal(t, "hotcold", Workload("hotcold").Value.AsString())
}

func TestProfilingConfig(t *testing.T) {
	cfg := ProfilingConfig{ServiceVersion: "1.0", Tags: map[string]string{"policy": "cat"}}
	assert.Equal(t, map[string]string{"policy": "cat", "version": "1.0"}, cfg.tags())

	types, err := parseProfileTypes(nil)
	require.NoError(t, err)
	assert.Len(t, types, len(DefaultProfileTypes))

	_, err = parseProfileTypes([]string{"cpu", "heap"})
	assert.ErrorContains(t, err, "heap")

	assert.Contains(t, ProfileTypeNames(), "mutex_count")
	assert.Len(t, ProfileTypeNames(), len(profileKinds))
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())

	called := false
	ProfileRun(context.Background(), func(context.Context) { called = true }, "policy", "greedy")
	assert.True(t, called)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := Config{SampleRate: tt.rate}.sampler().Description()
		assert.Contains(t, desc, tt.want)
		assert.Contains(t, desc, "ParentBased")
	}
}
