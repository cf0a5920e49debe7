package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/reporting"
	"narrative-lab/internal/storage"
)

// Output file names written by ReportPipeline.Run.
const (
	ReportFile     = "REPORT.md"
	SummaryFile    = "batch_summary.json"
	ResultsFile    = "symbol_results.csv"
	NarrativesFile = "narrative_outcomes.csv"
)

// ReportPipeline renders a finished batch to files.
type ReportPipeline struct {
	reportGen          *reporting.Generator
	sufficiencyChecker *SufficiencyChecker // optional
	outputDir          string
	clock              func() time.Time
}

// NewReportPipeline creates a new pipeline writing into outputDir.
func NewReportPipeline(snapshots storage.SnapshotStore, outcomes storage.OutcomeStore, lookbackDays int, outputDir string) *ReportPipeline {
	return &ReportPipeline{
		reportGen: reporting.NewGenerator(snapshots, outcomes, lookbackDays),
		outputDir: outputDir,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithSufficiencyChecker adds per-symbol data quality checks to the report.
func (p *ReportPipeline) WithSufficiencyChecker(c *SufficiencyChecker) *ReportPipeline {
	p.sufficiencyChecker = c
	if c != nil {
		c.WithClock(p.clock)
	}
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *ReportPipeline) WithClock(clock func() time.Time) *ReportPipeline {
	p.clock = clock
	p.reportGen = p.reportGen.WithClock(clock)
	if p.sufficiencyChecker != nil {
		p.sufficiencyChecker.WithClock(clock)
	}
	return p
}

// Run writes REPORT.md, batch_summary.json, symbol_results.csv and
// narrative_outcomes.csv, and returns the rendered report.
func (p *ReportPipeline) Run(ctx context.Context, summary *domain.BatchSummary) (*reporting.Report, error) {
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}

	report, err := p.reportGen.Generate(ctx, summary)
	if err != nil {
		return nil, err
	}

	if p.sufficiencyChecker != nil {
		symbols := make([]string, 0, len(summary.Results))
		for _, r := range summary.Results {
			symbols = append(symbols, r.Symbol)
		}
		results, err := p.sufficiencyChecker.Check(ctx, symbols)
		if err != nil {
			return nil, err
		}
		report.DataQuality = convertToDataQuality(results)
	}

	md := reporting.RenderMarkdown(report)
	jsonData, err := reporting.RenderJSON(report)
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	resultsCSV, err := reporting.RenderResultsCSV(summary)
	if err != nil {
		return nil, fmt.Errorf("render results csv: %w", err)
	}
	narrativesCSV, err := reporting.RenderNarrativesCSV(report.Narratives)
	if err != nil {
		return nil, fmt.Errorf("render narratives csv: %w", err)
	}

	md += fmt.Sprintf("\nData version: `%s`\n", computeDataVersion(report.Narratives))

	files := map[string][]byte{
		ReportFile:     []byte(md),
		SummaryFile:    jsonData,
		ResultsFile:    []byte(resultsCSV),
		NarrativesFile: []byte(narrativesCSV),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(p.outputDir, name), data, 0644); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// computeDataVersion hashes the narrative rows so two reports over the same
// stored outcomes carry the same version.
func computeDataVersion(rows []reporting.NarrativeOutcomeRow) string {
	csvData, err := reporting.RenderNarrativesCSV(rows)
	if err != nil {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(csvData))
	return hex.EncodeToString(sum[:])[:16]
}

func convertToDataQuality(results []SymbolSufficiency) []reporting.DataQualityRow {
	var rows []reporting.DataQualityRow
	for _, r := range results {
		for _, c := range r.Checks {
			rows = append(rows, reporting.DataQualityRow{
				Symbol:    r.Symbol,
				Check:     c.Name,
				Threshold: c.Threshold,
				Actual:    c.Actual,
				Pass:      c.Pass,
			})
		}
	}
	return rows
}
