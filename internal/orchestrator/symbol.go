package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/episode"
	"narrative-lab/internal/lookup"
	"narrative-lab/internal/outcome"
	"narrative-lab/internal/ranking"
)

// runSymbol processes one symbol and converts any error or panic into a failed result.
func (o *Orchestrator) runSymbol(ctx context.Context, symbol string, now time.Time) (res domain.SymbolResult) {
	start := time.Now()
	log := o.logger.With().Str("symbol", symbol).Logger()

	defer func() {
		if r := recover(); r != nil {
			res = domain.SymbolResult{Symbol: symbol, Error: fmt.Sprintf("panic: %v", r)}
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("symbol processing panicked")
		}
		o.finishSymbol(res, time.Since(start))
	}()

	count, err := o.processSymbol(ctx, symbol, now, log)
	if err != nil {
		return domain.SymbolResult{Symbol: symbol, Error: err.Error()}
	}
	return domain.SymbolResult{Symbol: symbol, Success: true, OutcomesCount: count}
}

// finishSymbol records metrics, progress and the per-symbol log line.
func (o *Orchestrator) finishSymbol(res domain.SymbolResult, elapsed time.Duration) {
	o.metrics.RecordSymbol(res.Success, elapsed.Seconds(), res.OutcomesCount)
	o.progress.SymbolDone(res)

	ev := o.logger.Info()
	if !res.Success {
		ev = o.logger.Warn().Str("error", res.Error)
	}
	ev.Str("symbol", res.Symbol).
		Bool("success", res.Success).
		Int("outcomes", res.OutcomesCount).
		Dur("duration", elapsed).
		Msg("symbol processed")
}

// processSymbol runs the per-symbol pipeline and returns the number of
// narrative outcomes written.
func (o *Orchestrator) processSymbol(ctx context.Context, symbol string, now time.Time, log zerolog.Logger) (int, error) {
	// 1. Snapshots in the lookback window
	if err := o.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	raws, err := o.snapshots.GetBySymbolRange(ctx, symbol, now.AddDate(0, 0, -o.lookbackDays), now)
	if err != nil {
		return 0, fmt.Errorf("load snapshots: %w", err)
	}
	if len(raws) == 0 {
		log.Debug().Msg("no snapshots in lookback window")
		return 0, nil
	}

	// 2. Full price history
	if err := o.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	points, err := o.prices.GetBySymbol(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("load prices: %w", err)
	}
	idx, err := lookup.NewPriceIndex(points)
	if errors.Is(err, lookup.ErrNoPriceData) {
		return 0, ErrNoPriceHistory
	}
	if err != nil {
		return 0, fmt.Errorf("index prices: %w", err)
	}

	// 3. Latest snapshot's narratives
	snapshots, latest, err := o.normalizeSeries(raws, log)
	if err != nil {
		return 0, err
	}
	if len(latest.Narratives) == 0 {
		log.Debug().Str("snapshot_id", latest.ID).Msg("latest snapshot has no narratives")
		return 0, nil
	}

	// 4. Rank and compute per narrative
	ranked := ranking.Rank(latest, o.topN, log)
	results, stats := o.computeOutcomes(symbol, snapshots, idx, ranked, now)

	o.metrics.EpisodesDetected.Add(float64(stats.episodes))
	o.metrics.NarrativeOutcomes.Add(float64(len(results)))
	if stats.unknownPersistence > 0 {
		o.metrics.UnknownPersistence.Add(float64(stats.unknownPersistence))
	}
	if stats.missingSessions > 0 {
		o.metrics.CalendarGapSessions.Add(float64(stats.missingSessions))
		log.Warn().
			Int("missing_sessions", stats.missingSessions).
			Msg("price series is missing exchange sessions inside outcome windows")
	}

	// 5. Overwrite outcomes on the latest snapshot
	if err := o.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	if err := o.outcomes.SaveNarrativeOutcomes(ctx, latest.ID, results); err != nil {
		return 0, fmt.Errorf("save outcomes: %w", err)
	}

	log.Debug().
		Str("snapshot_id", latest.ID).
		Int("snapshots", len(snapshots)).
		Int("prices", idx.Len()).
		Int("episodes", stats.episodes).
		Msg("outcomes saved")

	return len(results), nil
}

// normalizeSeries converts raw records to typed snapshots in observed_at order.
// A malformed latest record fails the symbol; malformed earlier records are skipped.
func (o *Orchestrator) normalizeSeries(raws []*domain.RawSnapshot, log zerolog.Logger) ([]*domain.Snapshot, *domain.Snapshot, error) {
	sorted := make([]*domain.RawSnapshot, 0, len(raws))
	for _, r := range raws {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})
	if len(sorted) == 0 {
		return nil, nil, errors.New("no usable snapshot records")
	}

	latest, err := o.normalizer.Normalize(sorted[len(sorted)-1])
	if err != nil {
		o.metrics.MalformedSnapshots.Inc()
		return nil, nil, err
	}

	snapshots := make([]*domain.Snapshot, 0, len(sorted))
	for _, r := range sorted[:len(sorted)-1] {
		s, err := o.normalizer.Normalize(r)
		if err != nil {
			o.metrics.MalformedSnapshots.Inc()
			log.Warn().Err(err).Str("snapshot_id", r.ID).Msg("skipping malformed snapshot")
			continue
		}
		snapshots = append(snapshots, s)
	}
	snapshots = append(snapshots, latest)

	return snapshots, latest, nil
}

type symbolStats struct {
	episodes           int
	missingSessions    int
	unknownPersistence int
}

// computeOutcomes builds one NarrativeOutcome per ranked narrative, including
// narratives without any closed episode. Pure apart from calendar lookups.
func (o *Orchestrator) computeOutcomes(
	symbol string,
	snapshots []*domain.Snapshot,
	idx *lookup.PriceIndex,
	ranked []ranking.Ranked,
	now time.Time,
) ([]domain.NarrativeOutcome, symbolStats) {
	var sessions lookup.Sessions
	if o.calendarEnabled {
		sessions = lookup.SessionsFor(symbol, o.defaultMIC)
	}
	calc := outcome.NewCalculator(o.outcomeCfg, sessions)

	narratives := ranking.Narratives(ranked)
	ids := make([]string, len(narratives))
	for i, n := range narratives {
		ids[i] = n.ID
	}
	byID := episode.DetectAll(snapshots, ids, o.episodeCfg)

	var stats symbolStats
	results := make([]domain.NarrativeOutcome, 0, len(narratives))
	for _, n := range narratives {
		if n.Persistence == domain.PersistenceUnknown {
			stats.unknownPersistence++
		}

		episodes := byID[n.ID]
		kept := calc.ComputeAll(idx, episodes)

		stats.episodes += len(episodes)
		for _, eo := range kept {
			stats.missingSessions += eo.MissingSessions
		}

		results = append(results, o.aggregator.Aggregate(n, kept, now))
	}
	return results, stats
}
