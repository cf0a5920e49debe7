// Package pipeline provides demo fixtures and the report output pipeline.
package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/idhash"
	"narrative-lab/internal/storage"
)

// Fixture symbols.
const (
	FixtureScenario = "TEST" // one closed episode, +6% at 5 rows, +12% at 10 rows
	FixtureRich     = "NVDA" // several episodes across two narratives
	FixtureNoPrices = "NOPX" // snapshots without any close
)

// FixtureSymbols lists the symbols LoadFixtures writes, in load order.
var FixtureSymbols = []string{FixtureScenario, FixtureRich, FixtureNoPrices}

type fixtureNarrative struct {
	ID               string   `json:"id"`
	Label            string   `json:"label"`
	PrevalencePct    float64  `json:"prevalence_pct"`
	DominantEmotions []string `json:"dominant_emotions,omitempty"`
}

type fixturePersistence struct {
	NarrativeID string `json:"narrative_id"`
	Persistence string `json:"persistence"`
}

type fixtureInterpretation struct {
	NarrativePersistence []fixturePersistence `json:"narrative_persistence"`
}

// LoadFixtures populates stores with demo data ending on end.
// Snapshots are taken at 14:30 UTC.
func LoadFixtures(ctx context.Context, snapshots storage.SnapshotStore, prices storage.PriceStore, end domain.CalendarDate) error {
	if err := loadScenario(ctx, snapshots, prices, end); err != nil {
		return err
	}
	if err := loadRich(ctx, snapshots, prices, end); err != nil {
		return err
	}
	return loadNoPrices(ctx, snapshots, end)
}

// loadScenario writes narrative X at 40, 35, 30, 5, 5 on five consecutive
// days with eleven consecutive closes from 100 to 112, the last on end.
func loadScenario(ctx context.Context, snapshots storage.SnapshotStore, prices storage.PriceStore, end domain.CalendarDate) error {
	day1 := end.AddDays(-10)
	for i, p := range []float64{40, 35, 30, 5, 5} {
		narratives := []fixtureNarrative{
			{ID: "X", Label: "Narrative X", PrevalencePct: p, DominantEmotions: []string{"excitement"}},
		}
		persistence := []fixturePersistence{{NarrativeID: "X", Persistence: "structural"}}
		if err := insertSnapshot(ctx, snapshots, FixtureScenario, day1.AddDays(i), narratives, persistence); err != nil {
			return err
		}
	}

	points := make([]*domain.PricePoint, 11)
	for i := range points {
		points[i] = &domain.PricePoint{
			Symbol: FixtureScenario,
			Date:   day1.AddDays(i),
			Close:  100 + 1.2*float64(i),
		}
	}
	return prices.InsertBulk(ctx, points)
}

// loadRich writes 120 daily snapshots with two cycling narratives and a
// weekday close series that trends with the first narrative.
func loadRich(ctx context.Context, snapshots storage.SnapshotStore, prices storage.PriceStore, end domain.CalendarDate) error {
	const days = 120
	start := end.AddDays(-(days - 1))

	for i := 0; i < days; i++ {
		ai := 22 + 14*math.Sin(2*math.Pi*float64(i)/21)
		curbs := 18 + 12*math.Sin(2*math.Pi*float64(i)/34+1.3)
		narratives := []fixtureNarrative{
			{ID: "ai-capex", Label: "AI datacenter capex", PrevalencePct: round1(ai), DominantEmotions: []string{"optimism", "greed"}},
			{ID: "export-curbs", Label: "Chip export restrictions", PrevalencePct: round1(curbs), DominantEmotions: []string{"fear"}},
			{ID: "earnings", Label: "Earnings beat", PrevalencePct: 9},
		}
		persistence := []fixturePersistence{
			{NarrativeID: "ai-capex", Persistence: "structural"},
			{NarrativeID: "export-curbs", Persistence: "event-driven"},
		}
		if err := insertSnapshot(ctx, snapshots, FixtureRich, start.AddDays(i), narratives, persistence); err != nil {
			return err
		}
	}

	var points []*domain.PricePoint
	price := 120.0
	for i := 0; i < days; i++ {
		d := start.AddDays(i)
		if wd := d.Time().Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		price *= 1 + 0.004*math.Sin(2*math.Pi*float64(i)/21+0.6) + 0.001
		points = append(points, &domain.PricePoint{Symbol: FixtureRich, Date: d, Close: math.Round(price*100) / 100})
	}
	return prices.InsertBulk(ctx, points)
}

func loadNoPrices(ctx context.Context, snapshots storage.SnapshotStore, end domain.CalendarDate) error {
	narratives := []fixtureNarrative{{ID: "listing", Label: "Exchange listing", PrevalencePct: 55}}
	return insertSnapshot(ctx, snapshots, FixtureNoPrices, end, narratives, nil)
}

func insertSnapshot(
	ctx context.Context,
	store storage.SnapshotStore,
	symbol string,
	date domain.CalendarDate,
	narratives []fixtureNarrative,
	persistence []fixturePersistence,
) error {
	narrJSON, err := json.Marshal(narratives)
	if err != nil {
		return err
	}
	interpJSON, err := json.Marshal(fixtureInterpretation{NarrativePersistence: persistence})
	if err != nil {
		return err
	}

	observedAt := date.Time().Add(14*time.Hour + 30*time.Minute)
	return store.Insert(ctx, &domain.RawSnapshot{
		ID:             idhash.ComputeSnapshotID(symbol, observedAt),
		Symbol:         symbol,
		ObservedAt:     observedAt,
		Narratives:     narrJSON,
		Interpretation: interpJSON,
	})
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
