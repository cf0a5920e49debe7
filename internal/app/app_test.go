package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrative-lab/internal/config"
	"narrative-lab/internal/orchestrator"
	"narrative-lab/internal/storage/memory"
)

func TestOpenStores_Memory(t *testing.T) {
	stores, err := OpenStores(context.Background(), config.StorageConfig{Backend: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	defer stores.Close()

	assert.Equal(t, "memory", stores.Backend)
	assert.Equal(t, "memory", stores.PriceBackend)
	assert.IsType(t, &memory.SnapshotStore{}, stores.Snapshots)
	assert.IsType(t, &memory.PriceStore{}, stores.Prices)
	// Outcomes are written back onto snapshot records.
	assert.Same(t, stores.Snapshots, stores.Outcomes)
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	_, err := OpenStores(context.Background(), config.StorageConfig{Backend: "sqlite"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOrchestratorOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.ThresholdPct = 30
	cfg.Engine.Hysteresis = 3
	cfg.Batch.Concurrency = 2
	cfg.Batch.RateLimit = 0
	cfg.Calendar.DefaultMIC = "xlon"

	stores, err := OpenStores(context.Background(), cfg.Storage, zerolog.Nop())
	require.NoError(t, err)
	defer stores.Close()

	opts := OrchestratorOptions(cfg, stores, zerolog.Nop(), nil, nil)

	assert.Equal(t, 30.0, opts.EpisodeConfig.ThresholdPct)
	assert.Equal(t, 3, opts.EpisodeConfig.Hysteresis)
	assert.Equal(t, 5, opts.OutcomeConfig.ShortHorizon)
	assert.Equal(t, 10, opts.OutcomeConfig.LongHorizon)
	assert.Equal(t, 10, opts.OutcomeConfig.DrawdownWindow)
	assert.Equal(t, 2, opts.Concurrency)
	assert.Equal(t, -1.0, opts.RateLimit)
	assert.Equal(t, 180, opts.LookbackDays)
	assert.Equal(t, 8, opts.TopN)
	assert.Equal(t, 45.0, opts.HalfLifeDays)
	assert.True(t, opts.CalendarEnabled)
	assert.Equal(t, "xlon", opts.DefaultMIC)
	assert.Nil(t, opts.Progress)

	_, err = orchestrator.New(opts)
	require.NoError(t, err)
}
