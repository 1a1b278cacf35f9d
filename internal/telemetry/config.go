package telemetry

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config configures OTLP trace export.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is an OTLP gRPC collector, host:port.
	Endpoint string
	Insecure bool

	// SampleRate is the fraction of simulation runs traced, 0 to 1.
	SampleRate float64

	// ResourceAttributes are attached to every span.
	ResourceAttributes map[string]string
}

// DefaultConfig returns tracing disabled with a local collector endpoint.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "ftlsim",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// sampler maps SampleRate onto a parent-based sampler so GC and FTL spans
// follow the decision taken for their run.
func (c Config) sampler() sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case c.SampleRate >= 1:
		root = sdktrace.AlwaysSample()
	case c.SampleRate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(c.SampleRate)
	}
	return sdktrace.ParentBased(root)
}

// ProfilingConfig configures Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL.
	Endpoint string

	// ProfileTypes names the profiles to push. Empty selects
	// DefaultProfileTypes.
	ProfileTypes []string

	// Tags are attached to every profile.
	Tags map[string]string
}

// DefaultProfileTypes covers GC scoring hot paths and victim registry churn.
var DefaultProfileTypes = []string{"cpu", "alloc_space", "inuse_space"}

func (c ProfilingConfig) tags() map[string]string {
	tags := make(map[string]string, len(c.Tags)+1)
	for k, v := range c.Tags {
		tags[k] = v
	}
	tags["version"] = c.ServiceVersion
	return tags
}
