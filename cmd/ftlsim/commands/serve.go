package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/api"
	"github.com/marmos91/ftlgc/pkg/config"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/sim"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status API and run simulations on request",
	Long: `Start the status API. Simulations are submitted with POST /runs and
executed in the background; progress, reports and saved snapshots can be
inspected over HTTP. Prometheus metrics are exposed on /metrics when
metrics are enabled.

The configuration file is watched while serving: a changed log level takes
effect without a restart.

Examples:
  # Serve on the configured port
  ftlsim serve

  # Serve on port 9000 with metrics
  FTLSIM_METRICS_ENABLED=true ftlsim serve --port 9000

  # Submit a run
  curl -X POST localhost:8080/runs -d '{"policy":"cat","workload":"zipf"}'`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "API port (default: from configuration, 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.API.Port = servePort
	}
	if !cfg.API.IsEnabled() {
		return fmt.Errorf("the API is disabled in the configuration; nothing to serve")
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stopObs, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopObs()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	store, err := openSnapshots(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("snapshot store close error", "error", err)
		}
	}()

	reg := registry.NewRegistry()
	reg.SetSnapshotStore(store)

	launcher := sim.NewLauncher(cfg.Simulation, store, reg, cfg.Launcher)
	launcher.Start(ctx)
	defer launcher.Stop(cfg.ShutdownTimeout)

	if source := getConfigSource(GetConfigFile()); source != "defaults" {
		go watchConfig(ctx, source)
	}

	apiServer := api.NewServer(cfg.API, reg, launcher)
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		completed, failed := launcher.Stats()
		logger.Info("Server stopped gracefully", "runs_completed", completed, "runs_failed", failed)

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// watchConfig applies configuration changes that are safe to take live.
func watchConfig(ctx context.Context, path string) {
	err := config.Watch(ctx, path, func(cfg *config.Config) {
		logger.SetLevel(cfg.Logging.Level)
		logger.Info("Log level updated", "level", cfg.Logging.Level)
	})
	if err != nil {
		logger.Warn("Config watch stopped", "error", err)
	}
}
