package normalization

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"narrative-lab/internal/domain"
)

// ErrMalformedSnapshot is returned when a stored snapshot cannot be read into
// the typed Snapshot shape.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// rawNarrative mirrors one element of the stored narratives array.
type rawNarrative struct {
	ID               string   `json:"id" validate:"required"`
	Label            string   `json:"label"`
	PrevalencePct    *float64 `json:"prevalence_pct" validate:"omitempty,gte=0,lte=100"`
	DominantEmotions []string `json:"dominant_emotions"`
}

type rawNarratives struct {
	Items []rawNarrative `validate:"unique=ID,dive"`
}

// rawInterpretation mirrors the parts of the stored interpretation we read.
type rawInterpretation struct {
	NarrativePersistence []struct {
		NarrativeID string `json:"narrative_id"`
		Persistence string `json:"persistence"`
	} `json:"narrative_persistence"`
}

type rawHeader struct {
	ID     string `validate:"required"`
	Symbol string `validate:"required"`
}

// Normalizer converts stored snapshot records into strict typed snapshots.
// Safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{validate: validator.New()}
}

// Normalize validates raw and returns the typed Snapshot.
//
// Defaults applied at this boundary:
//   - null or missing narratives: no narratives
//   - missing prevalence_pct: 0
//   - missing label: the narrative id
//   - missing or unrecognised persistence: PersistenceUnknown
//
// Anything else that does not fit the shape returns an error wrapping ErrMalformedSnapshot.
func (n *Normalizer) Normalize(raw *domain.RawSnapshot) (*domain.Snapshot, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedSnapshot)
	}
	if err := n.validate.Struct(rawHeader{ID: raw.ID, Symbol: raw.Symbol}); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSnapshot, raw.ID, err)
	}
	if raw.ObservedAt.IsZero() {
		return nil, fmt.Errorf("%w: %s: missing observed_at", ErrMalformedSnapshot, raw.ID)
	}

	items, err := n.decodeNarratives(raw.Narratives)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: narratives: %v", ErrMalformedSnapshot, raw.ID, err)
	}

	persistence, err := decodePersistence(raw.Interpretation)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: interpretation: %v", ErrMalformedSnapshot, raw.ID, err)
	}

	narratives := make([]domain.Narrative, 0, len(items))
	for _, it := range items {
		narr := domain.Narrative{
			ID:               it.ID,
			Label:            strings.TrimSpace(it.Label),
			DominantEmotions: cleanEmotions(it.DominantEmotions),
			Persistence:      persistence[it.ID],
		}
		if narr.Label == "" {
			narr.Label = it.ID
		}
		if it.PrevalencePct != nil {
			narr.PrevalencePct = *it.PrevalencePct
		}
		narratives = append(narratives, narr)
	}

	observed := raw.ObservedAt.UTC()
	return &domain.Snapshot{
		ID:         raw.ID,
		Symbol:     raw.Symbol,
		ObservedAt: observed,
		Date:       domain.DateOf(observed),
		Narratives: narratives,
	}, nil
}

func (n *Normalizer) decodeNarratives(data json.RawMessage) ([]rawNarrative, error) {
	if isAbsent(data) {
		return nil, nil
	}
	var items []rawNarrative
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if err := n.validate.Struct(rawNarratives{Items: items}); err != nil {
		return nil, err
	}
	return items, nil
}

// decodePersistence returns narrative id -> classification. Unrecognised
// labels map to PersistenceUnknown.
func decodePersistence(data json.RawMessage) (map[string]domain.Persistence, error) {
	out := make(map[string]domain.Persistence)
	if isAbsent(data) {
		return out, nil
	}
	var interp rawInterpretation
	if err := json.Unmarshal(data, &interp); err != nil {
		return nil, err
	}
	for _, np := range interp.NarrativePersistence {
		if np.NarrativeID == "" {
			continue
		}
		p, _ := domain.ParsePersistence(np.Persistence)
		if _, seen := out[np.NarrativeID]; !seen {
			out[np.NarrativeID] = p
		}
	}
	return out, nil
}

func isAbsent(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func cleanEmotions(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, e := range in {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
