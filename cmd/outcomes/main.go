// Package main runs one narrative outcome batch and prints the summary.
// Executes: load snapshots/prices → episodes → outcomes → persist → report
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"narrative-lab/internal/app"
	"narrative-lab/internal/config"
	"narrative-lab/internal/domain"
	"narrative-lab/internal/logger"
	"narrative-lab/internal/observability"
	"narrative-lab/internal/orchestrator"
	"narrative-lab/internal/pipeline"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (default: batch.symbols, then every symbol with snapshots)")
	useFixtures := flag.Bool("use-fixtures", false, "Load demo fixtures into in-memory stores")
	outputDir := flag.String("output-dir", "", "Write REPORT.md, CSV and JSON summaries to this directory")
	failOnError := flag.Bool("fail-on-error", false, "Exit with status 2 when any symbol fails")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *useFixtures {
		cfg.Storage.Backend = "memory"
		cfg.Storage.ClickhouseDSN = ""
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	// Cancel on SIGINT/SIGTERM and on the batch timeout
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Batch.Timeout)
	defer cancel()

	summary, err := run(ctx, cfg, log, *symbolsFlag, *useFixtures, *outputDir)
	if err != nil {
		log.Error().Err(err).Msg("batch failed")
		cancel()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Error().Err(err).Msg("encode summary")
	}

	if *failOnError && summary.Failed > 0 {
		cancel()
		os.Exit(2)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, symbolsFlag string, useFixtures bool, outputDir string) (*domain.BatchSummary, error) {
	stores, err := app.OpenStores(ctx, cfg.Storage, logger.Component(log, "storage"))
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	defer stores.Close()

	if useFixtures {
		// Fixtures end yesterday so every snapshot is inside the lookback window.
		end := domain.DateOf(time.Now()).AddDays(-1)
		if err := pipeline.LoadFixtures(ctx, stores.Snapshots, stores.Prices, end); err != nil {
			return nil, fmt.Errorf("load fixtures: %w", err)
		}
		log.Info().Strs("symbols", pipeline.FixtureSymbols).Str("end", end.String()).Msg("fixtures loaded")
	}

	symbols := config.ParseSymbols(symbolsFlag)
	if len(symbols) == 0 {
		symbols = cfg.Batch.Symbols
	}

	orch, err := orchestrator.New(app.OrchestratorOptions(
		cfg, stores, logger.Component(log, "orchestrator"), observability.DefaultMetrics, nil,
	))
	if err != nil {
		return nil, err
	}

	summary, err := orch.Run(ctx, symbols)
	if err != nil {
		return nil, err
	}

	if outputDir != "" {
		p := pipeline.NewReportPipeline(stores.Snapshots, stores.Outcomes, cfg.Engine.LookbackDays, outputDir).
			WithSufficiencyChecker(pipeline.NewSufficiencyChecker(
				stores.Snapshots, stores.Prices, cfg.Engine.LookbackDays, cfg.Engine.Hysteresis+1, cfg.Engine.LongHorizon,
			))
		if _, err := p.Run(ctx, summary); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
		log.Info().Str("dir", outputDir).Msg("report written")
	}

	return summary, nil
}
