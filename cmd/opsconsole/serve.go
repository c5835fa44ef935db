package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"opsconsole/internal/api"
	"opsconsole/internal/config"
	"opsconsole/internal/health"
	"opsconsole/internal/observability"
	"opsconsole/internal/probe"
	"opsconsole/internal/process"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API and metrics servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	// Load configuration
	svcCfg := config.LoadServiceConfig()
	procCfg := process.LoadConfigFromEnv()
	probeCfg := probe.LoadConfigFromEnv()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	supervisor := process.NewSupervisor(procCfg, metrics)
	sweeper := probe.NewSweeper(probeCfg, probe.NewHTTPProber(probeCfg), metrics)

	slog.Info("Console configured",
		"workdir", supervisor.Config().WorkingDirectory,
		"shell", supervisor.Config().Shell,
		"probe_concurrency", probeCfg.Concurrency,
		"export_dir", svcCfg.ExportDir,
		"log_level", svcCfg.LogLevel,
	)

	healthChecker := health.NewChecker(
		health.Check{Name: "supervisor", Checker: supervisor},
		health.Check{Name: "sweeper", Checker: sweeper},
		health.Check{Name: "export_dir", Checker: health.WritableDir(svcCfg.ExportDir), Optional: true},
	)

	router := api.NewRouter(api.RouterConfig{
		Supervisor:    supervisor,
		Sweeper:       sweeper,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
		ExportDir:     svcCfg.ExportDir,
		SyncCommand:   svcCfg.SyncCommand,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}
	if svcCfg.SyncCommand == "" {
		slog.Info("Proxy sync disabled - no SYNC_COMMAND configured")
	}

	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)

		// Phase 1: Mark service as unhealthy for load balancer draining
		healthChecker.SetShuttingDown()
		if svcCfg.ShutdownDrainWait > 0 {
			slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
			time.Sleep(svcCfg.ShutdownDrainWait)
		}

		// Phase 2: Stop accepting new connections, finish in-flight requests
		slog.Info("Starting graceful shutdown")
		shutdown(25 * time.Second)
	case runErr = <-serverErr:
		slog.Error("Server failed to start", "error", runErr)
		shutdown(5 * time.Second)
	}

	// Phase 3: Cancel the sweep and stop every supervised process
	workersCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := sweeper.Close(workersCtx); err != nil {
		slog.Warn("Sweeper shutdown error", "error", err)
	}
	if err := supervisor.Shutdown(workersCtx); err != nil {
		slog.Warn("Supervisor shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
	return runErr
}
