package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout 10s, got %v", cfg.API.ReadTimeout)
	}
	if cfg.API.WriteTimeout != 10*time.Second {
		t.Errorf("Expected default write timeout 10s, got %v", cfg.API.WriteTimeout)
	}
	if cfg.API.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.API.IdleTimeout)
	}
	if !cfg.API.IsEnabled() {
		t.Error("Expected API to be enabled by default")
	}
}

func TestApplyDefaults_Snapshots(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataDir)

	cfg := &Config{}
	ApplyDefaults(cfg)

	want := filepath.Join(dataDir, "ftlsim", "snapshots")
	if cfg.Snapshots.Path != want {
		t.Errorf("Expected snapshot path %q, got %q", want, cfg.Snapshots.Path)
	}

	mem := &Config{}
	mem.Snapshots.InMemory = true
	ApplyDefaults(mem)
	if mem.Snapshots.Path != "" {
		t.Errorf("Expected no path for in-memory snapshots, got %q", mem.Snapshots.Path)
	}
}

func TestApplyDefaults_Simulation(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	s := cfg.Simulation
	if s.Policy != "greedy" {
		t.Errorf("Expected default policy 'greedy', got %q", s.Policy)
	}
	if s.Commands != 100_000 {
		t.Errorf("Expected 100000 commands, got %d", s.Commands)
	}
	if s.Geometry.Dies != 4 || s.Geometry.BlocksPerDie != 64 || s.Geometry.PagesPerBlock != 128 || s.Geometry.PageSize != 4096 {
		t.Errorf("Unexpected default geometry: %+v", s.Geometry)
	}
	if s.FTL.GCThreshold != 2 {
		t.Errorf("Expected default gc threshold 2, got %d", s.FTL.GCThreshold)
	}
	if s.Workload.Kind != "hotcold" || s.Workload.HotFraction != 0.2 || s.Workload.HotProbability != 0.8 {
		t.Errorf("Unexpected default workload: %+v", s.Workload)
	}
	if s.QueueDepth != 256 {
		t.Errorf("Expected queue depth 256, got %d", s.QueueDepth)
	}
	if cfg.Launcher.Workers != 1 || cfg.Launcher.QueueSize != 16 {
		t.Errorf("Unexpected launcher defaults: %+v", cfg.Launcher)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "stderr",
		},
		ShutdownTimeout: 5 * time.Second,
	}
	cfg.API.Port = 9000
	cfg.Simulation.Policy = "CAT"
	cfg.Simulation.Geometry.Dies = 8
	cfg.Simulation.Workload.Kind = "Zipf"
	cfg.Simulation.Commands = 10
	cfg.Launcher.Workers = 4

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Expected explicit logging values to be kept, got %+v", cfg.Logging)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown timeout 5s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("Expected API port 9000, got %d", cfg.API.Port)
	}
	if cfg.Simulation.Policy != "cat" {
		t.Errorf("Expected lowercased policy 'cat', got %q", cfg.Simulation.Policy)
	}
	if cfg.Simulation.Workload.Kind != "zipf" {
		t.Errorf("Expected lowercased workload 'zipf', got %q", cfg.Simulation.Workload.Kind)
	}
	if cfg.Simulation.Geometry.Dies != 8 {
		t.Errorf("Expected 8 dies, got %d", cfg.Simulation.Geometry.Dies)
	}
	if cfg.Simulation.Commands != 10 {
		t.Errorf("Expected 10 commands, got %d", cfg.Simulation.Commands)
	}
	if cfg.Launcher.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Launcher.Workers)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should be valid, got: %v", err)
	}
	if !cfg.Simulation.Precondition {
		t.Error("Expected default config to precondition")
	}
	if cfg.Simulation.FTL.Overprovision != 0.125 {
		t.Errorf("Expected default overprovision 0.125, got %v", cfg.Simulation.FTL.Overprovision)
	}
}
