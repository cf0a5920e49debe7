// Package app wires configuration to stores and the orchestrator for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"narrative-lab/internal/config"
	"narrative-lab/internal/episode"
	"narrative-lab/internal/observability"
	"narrative-lab/internal/orchestrator"
	"narrative-lab/internal/outcome"
	"narrative-lab/internal/storage"
	chstore "narrative-lab/internal/storage/clickhouse"
	"narrative-lab/internal/storage/memory"
	"narrative-lab/internal/storage/migrations"
	pgstore "narrative-lab/internal/storage/postgres"
)

// Stores holds the store implementations selected by configuration.
type Stores struct {
	Snapshots storage.SnapshotStore
	Prices    storage.PriceStore
	Outcomes  storage.OutcomeStore

	// Backend names the snapshot backend, PriceBackend the price backend.
	Backend      string
	PriceBackend string

	closers []func()
}

// Close releases connections in reverse opening order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores creates stores for cfg. Snapshots and outcomes live in the
// selected backend; prices move to ClickHouse when a ClickHouse DSN is set.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (*Stores, error) {
	s := &Stores{Backend: cfg.Backend, PriceBackend: cfg.Backend}

	switch cfg.Backend {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)

		if cfg.Migrate {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info().Strs("applied", applied).Msg("postgres migrations done")
		}

		snapshots := pgstore.NewSnapshotStore(pool)
		s.Snapshots = snapshots
		s.Outcomes = snapshots
		s.Prices = pgstore.NewPriceStore(pool)

	case "memory", "":
		snapshots := memory.NewSnapshotStore()
		s.Backend = "memory"
		s.PriceBackend = "memory"
		s.Snapshots = snapshots
		s.Outcomes = snapshots
		s.Prices = memory.NewPriceStore()

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := openClickhouse(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.Prices = chstore.NewPriceStore(conn)
		s.PriceBackend = "clickhouse"
	}

	logger.Info().Str("snapshots", s.Backend).Str("prices", s.PriceBackend).Msg("stores ready")
	return s, nil
}

func openClickhouse(ctx context.Context, cfg config.StorageConfig) (*chstore.Conn, error) {
	if cfg.Migrate {
		if _, err := chstore.EnsureDatabase(ctx, cfg.ClickhouseDSN); err != nil {
			return nil, err
		}
	}
	conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
	}
	return conn, nil
}

// OrchestratorOptions maps configuration onto orchestrator options.
// metrics and progress may be nil.
func OrchestratorOptions(
	cfg *config.Config,
	stores *Stores,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	progress orchestrator.ProgressSink,
) orchestrator.Options {
	opts := orchestrator.Options{
		SnapshotStore: stores.Snapshots,
		PriceStore:    stores.Prices,
		OutcomeStore:  stores.Outcomes,
		Logger:        logger,
		Metrics:       metrics,
		Concurrency:   cfg.Batch.Concurrency,
		RateLimit:     cfg.Batch.RateLimit,
		LookbackDays:  cfg.Engine.LookbackDays,
		TopN:          cfg.Engine.TopN,
		EpisodeConfig: episode.Config{
			ThresholdPct: cfg.Engine.ThresholdPct,
			Hysteresis:   cfg.Engine.Hysteresis,
		},
		OutcomeConfig: outcome.Config{
			ShortHorizon:   cfg.Engine.ShortHorizon,
			LongHorizon:    cfg.Engine.LongHorizon,
			DrawdownWindow: cfg.Engine.DrawdownWindow,
		},
		HalfLifeDays:    cfg.Engine.HalfLifeDays,
		CalendarEnabled: cfg.Calendar.Enabled,
		DefaultMIC:      cfg.Calendar.DefaultMIC,
	}
	// A configured rate of 0 means unlimited.
	if opts.RateLimit == 0 {
		opts.RateLimit = -1
	}
	if progress != nil {
		opts.Progress = progress
	}
	return opts
}
