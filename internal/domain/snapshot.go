package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Persistence classifies how durable a narrative is expected to be.
type Persistence int

// Persistence classifications. PersistenceUnknown covers a missing or
// unrecognised classification and is ranked like PersistenceEmerging.
const (
	PersistenceUnknown Persistence = iota
	PersistenceStructural
	PersistenceEventDriven
	PersistenceEmerging
)

// ParsePersistence maps a stored classification string to Persistence.
// Returns (PersistenceUnknown, false) for empty or unrecognised values.
func ParsePersistence(s string) (Persistence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "structural":
		return PersistenceStructural, true
	case "event-driven", "event_driven", "eventdriven":
		return PersistenceEventDriven, true
	case "emerging":
		return PersistenceEmerging, true
	default:
		return PersistenceUnknown, false
	}
}

// Weight returns the ranking weight of the classification.
func (p Persistence) Weight() float64 {
	switch p {
	case PersistenceStructural:
		return 1.0
	case PersistenceEventDriven:
		return 0.7
	default:
		return 0.5
	}
}

// Effective returns the classification used downstream: unknown counts as emerging.
func (p Persistence) Effective() Persistence {
	if p == PersistenceUnknown {
		return PersistenceEmerging
	}
	return p
}

// String returns the wire name of the classification.
func (p Persistence) String() string {
	switch p {
	case PersistenceStructural:
		return "structural"
	case PersistenceEventDriven:
		return "event-driven"
	case PersistenceEmerging:
		return "emerging"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Persistence) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognised values decode to PersistenceUnknown.
func (p *Persistence) UnmarshalText(b []byte) error {
	*p, _ = ParsePersistence(string(b))
	return nil
}

// Narrative is one dominant narrative inside a snapshot.
type Narrative struct {
	ID               string
	Label            string
	PrevalencePct    float64 // 0..100
	DominantEmotions []string
	Persistence      Persistence
}

// DominantEmotion returns the first dominant emotion or "".
func (n Narrative) DominantEmotion() string {
	if len(n.DominantEmotions) == 0 {
		return ""
	}
	return n.DominantEmotions[0]
}

// Snapshot is a validated, strictly typed psychology snapshot for one symbol.
type Snapshot struct {
	ID         string
	Symbol     string
	ObservedAt time.Time
	Date       CalendarDate // UTC calendar date of ObservedAt
	Narratives []Narrative
}

// Prevalence returns the prevalence of narrativeID, or 0 if absent.
func (s *Snapshot) Prevalence(narrativeID string) float64 {
	for _, n := range s.Narratives {
		if n.ID == narrativeID {
			return n.PrevalencePct
		}
	}
	return 0
}

// RawSnapshot is a snapshot record as stored by the recording pipeline.
// Narratives and Interpretation are loosely shaped JSON documents.
// Corresponds to psychology_snapshots table in PostgreSQL.
type RawSnapshot struct {
	ID             string
	Symbol         string
	ObservedAt     time.Time
	Narratives     json.RawMessage // [{id,label,prevalence_pct,dominant_emotions}]
	Interpretation json.RawMessage // {narrative_persistence:[{narrative_id,persistence}]}
}
