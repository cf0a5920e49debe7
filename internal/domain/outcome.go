package domain

// ConfidenceLabel is the qualitative trust level of a narrative outcome summary.
type ConfidenceLabel string

// Confidence labels by closed-episode count.
const (
	ConfidenceExperimental ConfidenceLabel = "experimental" // < 5 episodes
	ConfidenceModerate     ConfidenceLabel = "moderate"     // < 10 episodes
	ConfidenceHigh         ConfidenceLabel = "high"
)

// HistoricalOutcomes is the statistical summary of past episodes for a narrative.
// All nullable fields are nil when no episode contributed a value.
type HistoricalOutcomes struct {
	EpisodeCount       int      `json:"episode_count"`
	AvgPriceMove5d     *float64 `json:"avg_price_move_5d"`
	AvgPriceMove10d    *float64 `json:"avg_price_move_10d"`
	MedianPriceMove10d *float64 `json:"median_price_move_10d"`
	P25PriceMove10d    *float64 `json:"p25_price_move_10d"`
	P75PriceMove10d    *float64 `json:"p75_price_move_10d"`
	WinRate5d          *int     `json:"win_rate_5d"`
	WinRate10d         *int     `json:"win_rate_10d"`
	MaxDrawdownAvg     *float64 `json:"max_drawdown_avg"`
}

// NarrativeOutcome is the persisted artifact for one (symbol, narrative) pair.
// Stored as an element of narrative_outcomes on the symbol's latest snapshot.
type NarrativeOutcome struct {
	NarrativeID          string             `json:"narrative_id"`
	Label                string             `json:"label"`
	CurrentPrevalencePct float64            `json:"current_prevalence_pct"`
	DominantEmotion      string             `json:"dominant_emotion"`
	Persistence          Persistence        `json:"persistence"`
	HistoricalOutcomes   HistoricalOutcomes `json:"historical_outcomes"`
	Confidence           float64            `json:"confidence"`
	ConfidenceLabel      ConfidenceLabel    `json:"confidence_label"`
}
