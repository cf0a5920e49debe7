// Package episode detects narrative dominance episodes in snapshot series.
package episode

import (
	"errors"

	"narrative-lab/internal/domain"
)

// Default detection parameters.
const (
	DefaultThresholdPct = 25.0
	DefaultHysteresis   = 2
)

// ErrInvalidConfig is returned when detection parameters are out of range.
var ErrInvalidConfig = errors.New("invalid episode config")

// Config holds threshold-with-hysteresis parameters.
type Config struct {
	ThresholdPct float64 // prevalence at or above which a narrative is dominant
	Hysteresis   int     // consecutive sub-threshold snapshots that close an episode
}

// DefaultConfig returns 25% threshold with 2-snapshot hysteresis.
func DefaultConfig() Config {
	return Config{
		ThresholdPct: DefaultThresholdPct,
		Hysteresis:   DefaultHysteresis,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ThresholdPct <= 0 || c.ThresholdPct > 100 {
		return errors.Join(ErrInvalidConfig, errors.New("threshold must be in (0, 100]"))
	}
	if c.Hysteresis < 1 {
		return errors.Join(ErrInvalidConfig, errors.New("hysteresis must be >= 1"))
	}
	return nil
}

type state int

const (
	stateInactive state = iota
	stateActive
)

// Detect runs the two-state machine once over snapshots (ascending by
// ObservedAt) for one narrative and returns only closed episodes.
//
// An episode still open at the end of the series is discarded: an ongoing
// surge has no forward outcome yet.
func Detect(snapshots []*domain.Snapshot, narrativeID string, cfg Config) []domain.Episode {
	var (
		episodes []domain.Episode
		current  domain.Episode
		st       = stateInactive
		below    int
	)

	for _, s := range snapshots {
		if s == nil {
			continue
		}
		prevalence := s.Prevalence(narrativeID)
		above := prevalence >= cfg.ThresholdPct

		switch st {
		case stateInactive:
			if above {
				current = domain.Episode{
					NarrativeID:    narrativeID,
					StartDate:      s.Date,
					EndDate:        s.Date,
					PeakPrevalence: prevalence,
					SnapshotCount:  1,
				}
				below = 0
				st = stateActive
			}

		case stateActive:
			if above {
				current.EndDate = s.Date
				if prevalence > current.PeakPrevalence {
					current.PeakPrevalence = prevalence
				}
				current.SnapshotCount++
				below = 0
				continue
			}
			below++
			if below >= cfg.Hysteresis {
				episodes = append(episodes, current)
				current = domain.Episode{}
				below = 0
				st = stateInactive
			}
		}
	}

	return episodes
}

// DetectAll runs Detect for each narrative id.
func DetectAll(snapshots []*domain.Snapshot, narrativeIDs []string, cfg Config) map[string][]domain.Episode {
	result := make(map[string][]domain.Episode, len(narrativeIDs))
	for _, id := range narrativeIDs {
		result[id] = Detect(snapshots, id, cfg)
	}
	return result
}
