// Package reporting renders batch summaries and stored narrative outcomes.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/storage"
)

// Generator produces reports from a batch summary and stored outcomes.
type Generator struct {
	snapshotStore storage.SnapshotStore
	outcomeStore  storage.OutcomeStore
	lookbackDays  int
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. lookbackDays must match the
// window the batch used to pick each symbol's latest snapshot.
func NewGenerator(snapshotStore storage.SnapshotStore, outcomeStore storage.OutcomeStore, lookbackDays int) *Generator {
	if lookbackDays <= 0 {
		lookbackDays = 180
	}
	return &Generator{
		snapshotStore: snapshotStore,
		outcomeStore:  outcomeStore,
		lookbackDays:  lookbackDays,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report for summary. Outcomes are read back for every
// successful symbol that wrote at least one, in summary order.
func (g *Generator) Generate(ctx context.Context, summary *domain.BatchSummary) (*Report, error) {
	if summary == nil {
		return nil, errors.New("nil batch summary")
	}

	now := g.now()
	report := &Report{
		GeneratedAt: now,
		Summary:     summary,
		Narratives:  []NarrativeOutcomeRow{},
	}

	for _, r := range summary.Results {
		if !r.Success || r.OutcomesCount == 0 {
			continue
		}
		rows, err := g.symbolRows(ctx, r.Symbol, now)
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", r.Symbol, err)
		}
		report.Narratives = append(report.Narratives, rows...)
	}

	return report, nil
}

func (g *Generator) symbolRows(ctx context.Context, symbol string, now time.Time) ([]NarrativeOutcomeRow, error) {
	snaps, err := g.snapshotStore.GetBySymbolRange(ctx, symbol, now.AddDate(0, 0, -g.lookbackDays), now)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	latest := snaps[len(snaps)-1]

	outcomes, err := g.outcomeStore.GetNarrativeOutcomes(ctx, latest.ID)
	if err != nil {
		return nil, err
	}

	rows := make([]NarrativeOutcomeRow, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, NarrativeOutcomeRow{Symbol: symbol, SnapshotID: latest.ID, Outcome: o})
	}
	return rows, nil
}
