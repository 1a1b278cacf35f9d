package logger

import (
	"context"
	"log/slog"
	"time"
)

type contextKey struct{}

// LogContext carries the fields of one simulation run into every *Ctx
// log line.
type LogContext struct {
	RunID     string
	TraceID   string
	SpanID    string
	Policy    string
	Workload  string
	StartTime time.Time
}

func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, contextKey{}, lc)
}

// FromContext returns the LogContext of ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(contextKey{}).(*LogContext)
	return lc
}

func NewLogContext(runID string) *LogContext {
	return &LogContext{RunID: runID, StartTime: time.Now()}
}

func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

func (lc *LogContext) with(set func(*LogContext)) *LogContext {
	c := lc.Clone()
	if c != nil {
		set(c)
	}
	return c
}

func (lc *LogContext) WithPolicy(policy string) *LogContext {
	return lc.with(func(c *LogContext) { c.Policy = policy })
}

func (lc *LogContext) WithWorkload(workload string) *LogContext {
	return lc.with(func(c *LogContext) { c.Workload = workload })
}

func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	return lc.with(func(c *LogContext) { c.TraceID, c.SpanID = traceID, spanID })
}

// DurationMs returns milliseconds since the run started.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}

func (lc *LogContext) attrs() []slog.Attr {
	fields := [...]struct{ key, val string }{
		{KeyRunID, lc.RunID},
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyPolicy, lc.Policy},
		{KeyWorkload, lc.Workload},
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if f.val != "" {
			attrs = append(attrs, slog.String(f.key, f.val))
		}
	}
	return attrs
}

// contextHandler puts the LogContext fields of the record's context ahead
// of the record's own attributes.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	lc := FromContext(ctx)
	if lc == nil {
		return h.Handler.Handle(ctx, r)
	}
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(lc.attrs()...)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})
	return h.Handler.Handle(ctx, out)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
