package reporting

import (
	"time"

	"narrative-lab/internal/domain"
)

// Report is the rendered view of one batch run.
type Report struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Summary     *domain.BatchSummary  `json:"summary"`
	Narratives  []NarrativeOutcomeRow `json:"narratives"`
	DataQuality []DataQualityRow      `json:"data_quality,omitempty"`
}

// NarrativeOutcomeRow is one stored narrative outcome with its location.
type NarrativeOutcomeRow struct {
	Symbol     string                  `json:"symbol"`
	SnapshotID string                  `json:"snapshot_id"`
	Outcome    domain.NarrativeOutcome `json:"outcome"`
}

// DataQualityRow is one per-symbol sufficiency check result.
type DataQualityRow struct {
	Symbol    string `json:"symbol"`
	Check     string `json:"check"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}
