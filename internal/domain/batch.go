package domain

import "time"

// SymbolResult is the per-symbol entry of a batch summary.
type SymbolResult struct {
	Symbol        string `json:"symbol"`
	Success       bool   `json:"success"`
	OutcomesCount int    `json:"outcomes_count"`
	Error         string `json:"error,omitempty"`
}

// BatchSummary is the contract returned to the invoking scheduler or CLI.
type BatchSummary struct {
	Results       []SymbolResult `json:"results"`
	Processed     int            `json:"processed"`
	Successful    int            `json:"successful"`
	Failed        int            `json:"failed"`
	TotalOutcomes int            `json:"total_outcomes"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
}

// NewBatchSummary folds per-symbol results into aggregate counts.
func NewBatchSummary(results []SymbolResult, startedAt, finishedAt time.Time) *BatchSummary {
	s := &BatchSummary{
		Results:    results,
		Processed:  len(results),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	for _, r := range results {
		if r.Success {
			s.Successful++
			s.TotalOutcomes += r.OutcomesCount
		} else {
			s.Failed++
		}
	}
	return s
}
