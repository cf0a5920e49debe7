// Package metrics aggregates episode outcomes into per-narrative statistics.
package metrics

import (
	"time"

	"narrative-lab/internal/domain"
)

// Aggregator summarises EpisodeOutcomes for a narrative.
type Aggregator struct {
	halfLifeDays float64
}

// NewAggregator creates an aggregator with the given recency half-life in days.
// A non-positive half-life falls back to DefaultHalfLifeDays.
func NewAggregator(halfLifeDays float64) *Aggregator {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	return &Aggregator{halfLifeDays: halfLifeDays}
}

// Aggregate uses the default half-life.
func Aggregate(narrative domain.Narrative, outcomes []domain.EpisodeOutcome, now time.Time) domain.NarrativeOutcome {
	return NewAggregator(DefaultHalfLifeDays).Aggregate(narrative, outcomes, now)
}

// Aggregate builds the NarrativeOutcome for narrative from its kept episode
// outcomes. now is the reference time for recency weights.
// An empty outcomes slice yields nil statistics and an experimental label.
func (a *Aggregator) Aggregate(narrative domain.Narrative, outcomes []domain.EpisodeOutcome, now time.Time) domain.NarrativeOutcome {
	hist := a.Historical(outcomes, now)

	// Label and sample size follow the episodes that produced 10-day stats.
	closed := 0
	for _, o := range outcomes {
		if o.Return10d != nil {
			closed++
		}
	}

	return domain.NarrativeOutcome{
		NarrativeID:          narrative.ID,
		Label:                narrative.Label,
		CurrentPrevalencePct: narrative.PrevalencePct,
		DominantEmotion:      narrative.DominantEmotion(),
		Persistence:          narrative.Persistence.Effective(),
		HistoricalOutcomes:   hist,
		Confidence:           ConfidenceScore(closed, hist.P25PriceMove10d, hist.P75PriceMove10d),
		ConfidenceLabel:      LabelFor(closed),
	}
}

// Historical computes the statistical summary without narrative metadata.
func (a *Aggregator) Historical(outcomes []domain.EpisodeOutcome, now time.Time) domain.HistoricalOutcomes {
	hist := domain.HistoricalOutcomes{EpisodeCount: len(outcomes)}
	if len(outcomes) == 0 {
		return hist
	}

	r5, w5 := a.collect(outcomes, now, 5)
	r10, w10 := a.collect(outcomes, now, 10)

	hist.AvgPriceMove5d = computeWeightedMean(r5, w5)
	hist.AvgPriceMove10d = computeWeightedMean(r10, w10)
	hist.WinRate5d = computeWinRate(r5)
	hist.WinRate10d = computeWinRate(r10)

	if len(r10) > 0 {
		sorted := sortedCopy(r10)
		median := Round2(computeMedian(sorted))
		p25 := Round2(computePercentile(sorted, 0.25))
		p75 := Round2(computePercentile(sorted, 0.75))
		hist.MedianPriceMove10d = &median
		hist.P25PriceMove10d = &p25
		hist.P75PriceMove10d = &p75
	}

	var drawdowns []float64
	for _, o := range outcomes {
		if o.MaxDrawdown10d != nil {
			drawdowns = append(drawdowns, *o.MaxDrawdown10d)
		}
	}
	hist.MaxDrawdownAvg = computeMean(drawdowns)

	return hist
}

// collect returns non-nil returns at horizon with their recency weights.
func (a *Aggregator) collect(outcomes []domain.EpisodeOutcome, now time.Time, horizon int) ([]float64, []float64) {
	var values, weights []float64
	for _, o := range outcomes {
		r := o.ReturnAt(horizon)
		if r == nil {
			continue
		}
		values = append(values, *r)
		weights = append(weights, recencyWeight(o.EpisodeStart.DaysSince(now), a.halfLifeDays))
	}
	return values, weights
}
