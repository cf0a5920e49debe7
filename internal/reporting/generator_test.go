package reporting

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/storage/memory"
)

var (
	testNow     = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	testStarted = time.Date(2025, 3, 20, 11, 59, 0, 0, time.UTC)
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func sampleOutcomes() []domain.NarrativeOutcome {
	return []domain.NarrativeOutcome{
		{
			NarrativeID:          "ai-capex",
			Label:                "AI capex, datacenter | demand",
			CurrentPrevalencePct: 42,
			DominantEmotion:      "optimism",
			Persistence:          domain.PersistenceStructural,
			HistoricalOutcomes: domain.HistoricalOutcomes{
				EpisodeCount:       3,
				AvgPriceMove5d:     ptrF(2.5),
				AvgPriceMove10d:    ptrF(4.75),
				MedianPriceMove10d: ptrF(4),
				P25PriceMove10d:    ptrF(1),
				P75PriceMove10d:    ptrF(8),
				WinRate5d:          ptrI(67),
				WinRate10d:         ptrI(100),
				MaxDrawdownAvg:     ptrF(-3.1),
			},
			Confidence:      0.2,
			ConfidenceLabel: domain.ConfidenceExperimental,
		},
		{
			NarrativeID:          "export-curbs",
			Label:                "Export curbs",
			CurrentPrevalencePct: 18,
			Persistence:          domain.PersistenceEmerging,
			Confidence:           0.2,
			ConfidenceLabel:      domain.ConfidenceExperimental,
		},
	}
}

func setupStores(t *testing.T) *memory.SnapshotStore {
	t.Helper()
	ctx := context.Background()
	store := memory.NewSnapshotStore()

	for i, id := range []string{"NVDA-1", "NVDA-2"} {
		if err := store.Insert(ctx, &domain.RawSnapshot{
			ID:         id,
			Symbol:     "NVDA",
			ObservedAt: testNow.AddDate(0, 0, i-3),
			Narratives: json.RawMessage(`[]`),
		}); err != nil {
			t.Fatalf("insert snapshot: %v", err)
		}
	}
	if err := store.SaveNarrativeOutcomes(ctx, "NVDA-2", sampleOutcomes()); err != nil {
		t.Fatalf("save outcomes: %v", err)
	}
	return store
}

func sampleSummary() *domain.BatchSummary {
	return domain.NewBatchSummary([]domain.SymbolResult{
		{Symbol: "NVDA", Success: true, OutcomesCount: 2},
		{Symbol: "QUIET", Success: true},
		{Symbol: "NOPX", Error: "No price history"},
	}, testStarted, testNow)
}

func TestGenerator_Generate(t *testing.T) {
	store := setupStores(t)
	gen := NewGenerator(store, store, 180).WithClock(func() time.Time { return testNow })

	report, err := gen.Generate(context.Background(), sampleSummary())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(testNow) {
		t.Errorf("expected GeneratedAt %v, got %v", testNow, report.GeneratedAt)
	}
	if len(report.Narratives) != 2 {
		t.Fatalf("expected 2 narrative rows, got %d", len(report.Narratives))
	}
	for _, row := range report.Narratives {
		if row.Symbol != "NVDA" || row.SnapshotID != "NVDA-2" {
			t.Errorf("unexpected row location %s/%s", row.Symbol, row.SnapshotID)
		}
	}
	if report.Narratives[0].Outcome.NarrativeID != "ai-capex" {
		t.Errorf("expected stored order, got %s first", report.Narratives[0].Outcome.NarrativeID)
	}
}

func TestGenerator_NilSummary(t *testing.T) {
	store := memory.NewSnapshotStore()
	if _, err := NewGenerator(store, store, 0).Generate(context.Background(), nil); err == nil {
		t.Error("expected error for nil summary")
	}
}

func TestRenderMarkdown(t *testing.T) {
	report := &Report{
		GeneratedAt: testNow,
		Summary:     sampleSummary(),
		Narratives: []NarrativeOutcomeRow{
			{Symbol: "NVDA", SnapshotID: "NVDA-2", Outcome: sampleOutcomes()[0]},
			{Symbol: "NVDA", SnapshotID: "NVDA-2", Outcome: sampleOutcomes()[1]},
		},
	}

	md := RenderMarkdown(report)

	wants := []string{
		"# Narrative Outcome Report",
		"| Processed | 3 |",
		"| Successful | 2 |",
		"| Failed | 1 |",
		"| Total Outcomes | 2 |",
		"| NOPX | FAIL | 0 | No price history |",
		"AI capex, datacenter \\| demand",
		"| 4.75 |",
		"1.00 / 8.00",
		"0.20 (experimental)",
		"| Export curbs | 18.00 | emerging | 0 | n/a |",
	}
	for _, w := range wants {
		if !strings.Contains(md, w) {
			t.Errorf("markdown missing %q\n%s", w, md)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&Report{
		GeneratedAt: testNow,
		Summary:     domain.NewBatchSummary(nil, testStarted, testNow),
	})
	if !strings.Contains(md, "No symbols processed.") || !strings.Contains(md, "No narrative outcomes.") {
		t.Errorf("unexpected empty report:\n%s", md)
	}
}

func TestRenderResultsCSV(t *testing.T) {
	out, err := RenderResultsCSV(sampleSummary())
	if err != nil {
		t.Fatalf("RenderResultsCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "symbol,success,outcomes_count,error" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[3] != "NOPX,false,0,No price history" {
		t.Errorf("unexpected failure row %q", lines[3])
	}
}

func TestRenderNarrativesCSV(t *testing.T) {
	rows := []NarrativeOutcomeRow{
		{Symbol: "NVDA", SnapshotID: "NVDA-2", Outcome: sampleOutcomes()[0]},
		{Symbol: "NVDA", SnapshotID: "NVDA-2", Outcome: sampleOutcomes()[1]},
	}
	out, err := RenderNarrativesCSV(rows)
	if err != nil {
		t.Fatalf("RenderNarrativesCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	// Labels with commas are quoted.
	if !strings.Contains(lines[1], `"AI capex, datacenter | demand"`) {
		t.Errorf("label not quoted: %q", lines[1])
	}
	if !strings.Contains(lines[1], ",3,2.50,4.75,4.00,1.00,8.00,67,100,-3.10,0.20,experimental") {
		t.Errorf("unexpected stats in %q", lines[1])
	}
	// Nil statistics are empty cells.
	if !strings.HasSuffix(lines[2], ",emerging,0,,,,,,,,,0.20,experimental") {
		t.Errorf("unexpected empty stats in %q", lines[2])
	}
}

func TestRenderJSON(t *testing.T) {
	report := &Report{
		GeneratedAt: testNow,
		Summary:     sampleSummary(),
		Narratives:  []NarrativeOutcomeRow{{Symbol: "NVDA", SnapshotID: "NVDA-2", Outcome: sampleOutcomes()[1]}},
	}
	data, err := RenderJSON(report)
	if err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := string(data)
	for _, w := range []string{`"total_outcomes": 2`, `"persistence": "emerging"`, `"avg_price_move_10d": null`, `"error": "No price history"`} {
		if !strings.Contains(s, w) {
			t.Errorf("JSON missing %s", w)
		}
	}
}
