package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/ftlgc/internal/telemetry"
	"github.com/marmos91/ftlgc/pkg/api"
	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl"
	"github.com/marmos91/ftlgc/pkg/sim"
	"github.com/marmos91/ftlgc/pkg/snapshot"
	"github.com/marmos91/ftlgc/pkg/workload"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyAPIDefaults(&cfg.API)
	applySnapshotDefaults(&cfg.Snapshots)
	applySimulationDefaults(&cfg.Simulation)
	applyLauncherDefaults(&cfg.Launcher)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = append([]string(nil), telemetry.DefaultProfileTypes...)
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyAPIDefaults sets status API server defaults.
func applyAPIDefaults(cfg *api.APIConfig) {
	if cfg.Address == "" {
		cfg.Address = api.DefaultAddress
	}
	if cfg.Port == 0 {
		cfg.Port = api.DefaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = api.DefaultRequestTimeout
	}
}

// applySnapshotDefaults places the snapshot database under the XDG data
// directory unless it lives in memory.
func applySnapshotDefaults(cfg *snapshot.Config) {
	if cfg.Path == "" && !cfg.InMemory {
		cfg.Path = filepath.Join(getDataDir(), "snapshots")
	}
}

// applySimulationDefaults fills the run description field by field from
// sim.DefaultConfig. Precondition and over-provisioning have meaningful zero
// values and are defaulted through viper instead (see Load).
func applySimulationDefaults(cfg *sim.Config) {
	def := sim.DefaultConfig()

	applyGeometryDefaults(&cfg.Geometry, def.Geometry)
	applyFTLDefaults(&cfg.FTL, def.FTL)
	applyWorkloadDefaults(&cfg.Workload, def.Workload)

	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
	cfg.Policy = strings.ToLower(cfg.Policy)

	if cfg.Commands == 0 {
		cfg.Commands = def.Commands
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = def.QueueDepth
	}
}

func applyGeometryDefaults(cfg *flash.Geometry, def flash.Geometry) {
	if cfg.Dies == 0 {
		cfg.Dies = def.Dies
	}
	if cfg.BlocksPerDie == 0 {
		cfg.BlocksPerDie = def.BlocksPerDie
	}
	if cfg.PagesPerBlock == 0 {
		cfg.PagesPerBlock = def.PagesPerBlock
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = def.PageSize
	}
}

func applyFTLDefaults(cfg *ftl.Config, def ftl.Config) {
	if cfg.GCThreshold == 0 {
		cfg.GCThreshold = def.GCThreshold
	}
}

func applyWorkloadDefaults(cfg *workload.Config, def workload.Config) {
	if cfg.Kind == "" {
		cfg.Kind = def.Kind
	}
	cfg.Kind = strings.ToLower(cfg.Kind)

	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.HotFraction == 0 {
		cfg.HotFraction = def.HotFraction
	}
	if cfg.HotProbability == 0 {
		cfg.HotProbability = def.HotProbability
	}
	if cfg.ZipfExponent == 0 {
		cfg.ZipfExponent = def.ZipfExponent
	}
}

// applyLauncherDefaults sets background run defaults.
func applyLauncherDefaults(cfg *sim.LauncherConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 16
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Simulation: sim.DefaultConfig(),
	}

	ApplyDefaults(cfg)
	return cfg
}
