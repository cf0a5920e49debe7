package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"narrative-lab/internal/domain"
)

// RenderResultsCSV renders per-symbol batch results as CSV string.
func RenderResultsCSV(s *domain.BatchSummary) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"symbol", "success", "outcomes_count", "error"}); err != nil {
		return "", err
	}
	for _, r := range s.Results {
		if err := w.Write([]string{
			r.Symbol,
			strconv.FormatBool(r.Success),
			strconv.Itoa(r.OutcomesCount),
			r.Error,
		}); err != nil {
			return "", err
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}

// RenderNarrativesCSV renders narrative outcome rows as CSV string.
// Missing statistics are written as empty cells.
func RenderNarrativesCSV(rows []NarrativeOutcomeRow) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{
		"symbol", "snapshot_id", "narrative_id", "label", "current_prevalence_pct",
		"dominant_emotion", "persistence", "episode_count",
		"avg_price_move_5d", "avg_price_move_10d", "median_price_move_10d",
		"p25_price_move_10d", "p75_price_move_10d", "win_rate_5d", "win_rate_10d",
		"max_drawdown_avg", "confidence", "confidence_label",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, row := range rows {
		o := row.Outcome
		h := o.HistoricalOutcomes
		if err := w.Write([]string{
			row.Symbol,
			row.SnapshotID,
			o.NarrativeID,
			o.Label,
			formatFloat(o.CurrentPrevalencePct),
			o.DominantEmotion,
			o.Persistence.String(),
			strconv.Itoa(h.EpisodeCount),
			formatOptFloat(h.AvgPriceMove5d),
			formatOptFloat(h.AvgPriceMove10d),
			formatOptFloat(h.MedianPriceMove10d),
			formatOptFloat(h.P25PriceMove10d),
			formatOptFloat(h.P75PriceMove10d),
			formatOptInt(h.WinRate5d),
			formatOptInt(h.WinRate10d),
			formatOptFloat(h.MaxDrawdownAvg),
			formatFloat(o.Confidence),
			string(o.ConfidenceLabel),
		}); err != nil {
			return "", err
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
