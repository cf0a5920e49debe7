// Package ranking selects the currently dominant narratives of a snapshot.
package ranking

import (
	"sort"

	"github.com/rs/zerolog"

	"narrative-lab/internal/domain"
)

// DefaultTopN is the number of narratives kept per snapshot.
const DefaultTopN = 8

// Ranked is a narrative with its ranking score.
type Ranked struct {
	Narrative domain.Narrative
	Score     float64
}

// Rank orders the snapshot's narratives by prevalence times persistence
// weight, descending, and keeps at most topN. Equal scores are ordered by
// narrative id. Narratives with an unknown persistence classification are
// weighted as emerging and logged.
func Rank(snapshot *domain.Snapshot, topN int, logger zerolog.Logger) []Ranked {
	if snapshot == nil || len(snapshot.Narratives) == 0 {
		return nil
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	ranked := make([]Ranked, 0, len(snapshot.Narratives))
	for _, n := range snapshot.Narratives {
		if n.Persistence == domain.PersistenceUnknown {
			logger.Warn().
				Str("symbol", snapshot.Symbol).
				Str("snapshot_id", snapshot.ID).
				Str("narrative_id", n.ID).
				Msg("unknown persistence classification, weighting as emerging")
		}
		ranked = append(ranked, Ranked{
			Narrative: n,
			Score:     n.PrevalencePct * n.Persistence.Weight(),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Narrative.ID < ranked[j].Narrative.ID
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// Narratives strips scores from a ranking.
func Narratives(ranked []Ranked) []domain.Narrative {
	out := make([]domain.Narrative, len(ranked))
	for i, r := range ranked {
		out[i] = r.Narrative
	}
	return out
}
