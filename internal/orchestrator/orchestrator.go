// Package orchestrator runs the narrative outcome batch.
// For each symbol it coordinates: load snapshots → load prices → rank →
// detect episodes → forward outcomes → aggregate → persist.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/episode"
	"narrative-lab/internal/metrics"
	"narrative-lab/internal/normalization"
	"narrative-lab/internal/observability"
	"narrative-lab/internal/outcome"
	"narrative-lab/internal/ranking"
	"narrative-lab/internal/storage"
)

// Defaults applied to zero-valued Options.
const (
	DefaultConcurrency  = 4
	DefaultRateLimit    = 20.0
	DefaultLookbackDays = 180
)

// ErrNoPriceHistory is recorded for symbols without any daily close.
var ErrNoPriceHistory = errors.New("No price history")

// ErrInvalidOptions is returned by New for missing stores or bad parameters.
var ErrInvalidOptions = errors.New("invalid orchestrator options")

// ProgressSink receives batch progress as it happens.
type ProgressSink interface {
	BatchStarted(total int)
	SymbolDone(r domain.SymbolResult)
	BatchFinished(s *domain.BatchSummary)
}

type nopProgress struct{}

func (nopProgress) BatchStarted(int)                   {}
func (nopProgress) SymbolDone(domain.SymbolResult)     {}
func (nopProgress) BatchFinished(*domain.BatchSummary) {}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	SnapshotStore storage.SnapshotStore
	PriceStore    storage.PriceStore
	OutcomeStore  storage.OutcomeStore

	Logger   zerolog.Logger
	Clock    func() time.Time      // nil = time.Now
	Metrics  *observability.Metrics // nil = private registry
	Progress ProgressSink           // optional

	Concurrency  int     // symbols in flight, default 4
	RateLimit    float64 // store calls per second, default 20, negative = unlimited
	LookbackDays int     // snapshot window, default 180
	TopN         int     // ranked narratives per symbol, default 8

	EpisodeConfig episode.Config // zero value = episode.DefaultConfig()
	OutcomeConfig outcome.Config // zero value = outcome.DefaultConfig()
	HalfLifeDays  float64        // recency half-life, default 45

	// Trading-calendar gap audit
	CalendarEnabled bool
	DefaultMIC      string
}

// Orchestrator coordinates per-symbol outcome computation.
type Orchestrator struct {
	snapshots storage.SnapshotStore
	prices    storage.PriceStore
	outcomes  storage.OutcomeStore

	normalizer *normalization.Normalizer
	aggregator *metrics.Aggregator
	limiter    *rate.Limiter

	logger   zerolog.Logger
	clock    func() time.Time
	metrics  *observability.Metrics
	progress ProgressSink

	concurrency  int
	lookbackDays int
	topN         int
	episodeCfg   episode.Config
	outcomeCfg   outcome.Config

	calendarEnabled bool
	defaultMIC      string
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.SnapshotStore == nil || opts.PriceStore == nil || opts.OutcomeStore == nil {
		return nil, fmt.Errorf("%w: snapshot, price and outcome stores are required", ErrInvalidOptions)
	}

	o := &Orchestrator{
		snapshots:       opts.SnapshotStore,
		prices:          opts.PriceStore,
		outcomes:        opts.OutcomeStore,
		normalizer:      normalization.NewNormalizer(),
		aggregator:      metrics.NewAggregator(opts.HalfLifeDays),
		logger:          opts.Logger,
		clock:           opts.Clock,
		metrics:         opts.Metrics,
		progress:        opts.Progress,
		concurrency:     opts.Concurrency,
		lookbackDays:    opts.LookbackDays,
		topN:            opts.TopN,
		episodeCfg:      opts.EpisodeConfig,
		outcomeCfg:      opts.OutcomeConfig,
		calendarEnabled: opts.CalendarEnabled,
		defaultMIC:      opts.DefaultMIC,
	}

	if o.clock == nil {
		o.clock = time.Now
	}
	if o.metrics == nil {
		o.metrics = observability.NewMetrics("", prometheus.NewRegistry())
	}
	if o.progress == nil {
		o.progress = nopProgress{}
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultConcurrency
	}
	if o.lookbackDays <= 0 {
		o.lookbackDays = DefaultLookbackDays
	}
	if o.topN <= 0 {
		o.topN = ranking.DefaultTopN
	}
	if o.episodeCfg == (episode.Config{}) {
		o.episodeCfg = episode.DefaultConfig()
	}
	if err := o.episodeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if o.outcomeCfg == (outcome.Config{}) {
		o.outcomeCfg = outcome.DefaultConfig()
	}
	if o.outcomeCfg.ShortHorizon <= 0 || o.outcomeCfg.LongHorizon <= o.outcomeCfg.ShortHorizon || o.outcomeCfg.DrawdownWindow <= 0 {
		return nil, fmt.Errorf("%w: horizons must satisfy 0 < short < long and drawdown window > 0", ErrInvalidOptions)
	}

	limit := rate.Limit(opts.RateLimit)
	switch {
	case opts.RateLimit == 0:
		limit = rate.Limit(DefaultRateLimit)
	case opts.RateLimit < 0:
		limit = rate.Inf
	}
	o.limiter = rate.NewLimiter(limit, o.concurrency)

	return o, nil
}

// Run processes symbols and returns the batch summary.
// An empty symbols list processes every symbol known to the snapshot store.
// Per-symbol failures are recorded in the summary, never returned.
// Symbols not yet started when ctx is cancelled are recorded as failed.
func (o *Orchestrator) Run(ctx context.Context, symbols []string) (*domain.BatchSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbols = cleanSymbols(symbols)
	if len(symbols) == 0 {
		listed, err := o.snapshots.ListSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
		symbols = cleanSymbols(listed)
	}

	now := o.clock()
	startedAt := time.Now()
	o.metrics.BatchInProgress.Inc()
	defer o.metrics.BatchInProgress.Dec()
	o.progress.BatchStarted(len(symbols))
	o.logger.Info().Int("symbols", len(symbols)).Int("concurrency", o.concurrency).Msg("batch started")

	results := make([]domain.SymbolResult, len(symbols))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			results[i] = domain.SymbolResult{Symbol: symbol, Error: err.Error()}
			o.finishSymbol(results[i], 0)
			continue
		}
		g.Go(func() error {
			results[i] = o.runSymbol(ctx, symbol, now)
			return nil
		})
	}
	_ = g.Wait()

	summary := domain.NewBatchSummary(results, startedAt, time.Now())
	elapsed := summary.FinishedAt.Sub(summary.StartedAt)
	o.metrics.RecordBatchRun(ctx.Err() == nil, elapsed.Seconds(), summary.FinishedAt.Unix())
	o.progress.BatchFinished(summary)

	o.logger.Info().
		Int("processed", summary.Processed).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Int("total_outcomes", summary.TotalOutcomes).
		Dur("duration", elapsed).
		Msg("batch finished")

	return summary, nil
}

// cleanSymbols trims, drops empty entries and removes repeats, keeping first occurrence order.
func cleanSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
