package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	s := r.Summary

	// Header
	sb.WriteString("# Narrative Outcome Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s → %s (%s)\n\n",
		s.StartedAt.UTC().Format(time.RFC3339),
		s.FinishedAt.UTC().Format(time.RFC3339),
		s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)))

	// Batch Summary
	sb.WriteString("## Batch Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Processed | %d |\n", s.Processed))
	sb.WriteString(fmt.Sprintf("| Successful | %d |\n", s.Successful))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", s.Failed))
	sb.WriteString(fmt.Sprintf("| Total Outcomes | %d |\n", s.TotalOutcomes))
	sb.WriteString("\n")

	// Symbols
	sb.WriteString("## Symbols\n\n")
	if len(s.Results) == 0 {
		sb.WriteString("No symbols processed.\n\n")
	} else {
		sb.WriteString("| Symbol | Status | Outcomes | Error |\n")
		sb.WriteString("|--------|--------|----------|-------|\n")
		for _, res := range s.Results {
			status := "FAIL"
			if res.Success {
				status = "OK"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n",
				res.Symbol, status, res.OutcomesCount, escapeCell(res.Error)))
		}
		sb.WriteString("\n")
	}

	// Data Quality
	if len(r.DataQuality) > 0 {
		sb.WriteString("## Data Quality\n\n")
		sb.WriteString("| Symbol | Check | Threshold | Actual | Status |\n")
		sb.WriteString("|--------|-------|-----------|--------|--------|\n")
		for _, q := range r.DataQuality {
			status := "FAIL"
			if q.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				q.Symbol, q.Check, q.Threshold, escapeCell(q.Actual), status))
		}
		sb.WriteString("\n")
	}

	// Narrative Outcomes
	sb.WriteString("## Narrative Outcomes\n\n")
	if len(r.Narratives) == 0 {
		sb.WriteString("No narrative outcomes.\n\n")
		return sb.String()
	}
	sb.WriteString("| Symbol | Narrative | Prevalence % | Persistence | Episodes | Avg 5d % | Avg 10d % | Median 10d % | P25/P75 10d % | Win 10d % | Avg Max DD % | Confidence |\n")
	sb.WriteString("|--------|-----------|--------------|-------------|----------|----------|-----------|--------------|---------------|-----------|--------------|------------|\n")
	for _, row := range r.Narratives {
		o := row.Outcome
		h := o.HistoricalOutcomes
		sb.WriteString(fmt.Sprintf("| %s | %s | %.2f | %s | %d | %s | %s | %s | %s / %s | %s | %s | %.2f (%s) |\n",
			row.Symbol,
			escapeCell(o.Label),
			o.CurrentPrevalencePct,
			o.Persistence,
			h.EpisodeCount,
			fmtPct(h.AvgPriceMove5d),
			fmtPct(h.AvgPriceMove10d),
			fmtPct(h.MedianPriceMove10d),
			fmtPct(h.P25PriceMove10d),
			fmtPct(h.P75PriceMove10d),
			fmtInt(h.WinRate10d),
			fmtPct(h.MaxDrawdownAvg),
			o.Confidence,
			o.ConfidenceLabel,
		))
	}
	sb.WriteString("\n")
	sb.WriteString("_Historical outcomes are descriptive. They are not forecasts or trading signals._\n")

	return sb.String()
}

// RenderJSON renders report as indented JSON.
func RenderJSON(r *Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func fmtPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtInt(v *int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *v)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
