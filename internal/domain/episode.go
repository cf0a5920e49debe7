package domain

// Episode is a closed interval during which a narrative stayed at or above
// the dominance threshold, tolerating brief dips. Never persisted.
type Episode struct {
	NarrativeID    string
	StartDate      CalendarDate // anchor: first threshold crossing
	EndDate        CalendarDate // last snapshot still at/above threshold
	PeakPrevalence float64
	SnapshotCount  int
}

// EpisodeOutcome holds forward price outcomes anchored at an episode start.
// Returns and drawdown are percentages rounded to 2 decimals; nil when the
// price series lacks forward coverage.
type EpisodeOutcome struct {
	EpisodeStart   CalendarDate
	AnchorClose    *float64
	Return5d       *float64
	Return10d      *float64
	MaxDrawdown10d *float64

	// MissingSessions counts exchange sessions absent from the price series
	// inside the longest horizon window. Diagnostic only.
	MissingSessions int
}

// ReturnAt returns the forward return for a horizon in trading rows.
func (o EpisodeOutcome) ReturnAt(horizon int) *float64 {
	switch horizon {
	case 5:
		return o.Return5d
	case 10:
		return o.Return10d
	default:
		return nil
	}
}
