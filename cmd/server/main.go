// Package main runs the narrative outcome batch on a cron schedule and
// serves /health, /status, /metrics, /run and the /ws progress feed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"narrative-lab/internal/app"
	"narrative-lab/internal/config"
	"narrative-lab/internal/logger"
	"narrative-lab/internal/observability"
	"narrative-lab/internal/orchestrator"
	"narrative-lab/internal/progress"
)

func main() {
	// Parse flags (config file and env vars as defaults)
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	schedule := flag.String("schedule", "", "Cron schedule, 5 fields (overrides server.schedule)")
	outputDir := flag.String("output-dir", "", "Write a report after every run to this directory")
	runOnStart := flag.Bool("run-on-start", false, "Run one batch immediately at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *schedule != "" {
		cfg.Server.Schedule = *schedule
	}
	if *runOnStart {
		cfg.Server.RunOnStart = true
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg.Storage, logger.Component(log, "storage"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stores")
	}
	defer stores.Close()

	hub := progress.NewHub(logger.Component(log, "progress"))
	go hub.Run(ctx)

	orch, err := orchestrator.New(app.OrchestratorOptions(
		cfg, stores, logger.Component(log, "orchestrator"), observability.DefaultMetrics, hub,
	))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create orchestrator")
	}

	srv := NewServer(ServerOptions{
		Config:    cfg,
		Runner:    orch,
		Stores:    stores,
		Hub:       hub,
		Metrics:   observability.DefaultMetrics,
		Logger:    logger.Component(log, "server"),
		OutputDir: *outputDir,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("scheduler error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}

	log.Info().Msg("shutdown complete")
}
