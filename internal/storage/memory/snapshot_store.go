package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/storage"
)

type snapshotRecord struct {
	snapshot domain.RawSnapshot
	outcomes []byte // narrative_outcomes JSON, nil until first save
}

// SnapshotStore is an in-memory implementation of storage.SnapshotStore and
// storage.OutcomeStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*snapshotRecord // keyed by snapshot id
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*snapshotRecord),
	}
}

// Insert adds a new snapshot. Returns ErrDuplicateKey if id exists.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.RawSnapshot) error {
	if snap == nil || snap.ID == "" || snap.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[snap.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[snap.ID] = &snapshotRecord{snapshot: copyRawSnapshot(snap)}
	return nil
}

// GetBySymbolRange retrieves snapshots for a symbol within [start, end], ordered by observed_at ASC.
func (s *SnapshotStore) GetBySymbolRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.RawSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawSnapshot
	for _, rec := range s.data {
		snap := rec.snapshot
		if snap.Symbol != symbol || snap.ObservedAt.Before(start) || snap.ObservedAt.After(end) {
			continue
		}
		c := copyRawSnapshot(&snap)
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ObservedAt.Before(result[j].ObservedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// ListSymbols returns all distinct symbols, sorted ASC.
func (s *SnapshotStore) ListSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, rec := range s.data {
		seen[rec.snapshot.Symbol] = struct{}{}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// SaveNarrativeOutcomes overwrites the outcomes of a snapshot.
func (s *SnapshotStore) SaveNarrativeOutcomes(_ context.Context, snapshotID string, outcomes []domain.NarrativeOutcome) error {
	data, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("marshal narrative outcomes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[snapshotID]
	if !ok {
		return storage.ErrNotFound
	}
	rec.outcomes = data
	return nil
}

// GetNarrativeOutcomes returns the stored outcomes of a snapshot.
func (s *SnapshotStore) GetNarrativeOutcomes(_ context.Context, snapshotID string) ([]domain.NarrativeOutcome, error) {
	s.mu.RLock()
	rec, ok := s.data[snapshotID]
	var data []byte
	if ok {
		data = rec.outcomes
	}
	s.mu.RUnlock()

	if !ok {
		return nil, storage.ErrNotFound
	}
	if data == nil {
		return nil, nil
	}

	var outcomes []domain.NarrativeOutcome
	if err := json.Unmarshal(data, &outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal narrative outcomes: %w", err)
	}
	return outcomes, nil
}

// RawNarrativeOutcomes returns the stored JSON document of a snapshot's outcomes.
func (s *SnapshotStore) RawNarrativeOutcomes(snapshotID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[snapshotID]
	if !ok || rec.outcomes == nil {
		return nil, false
	}
	out := make([]byte, len(rec.outcomes))
	copy(out, rec.outcomes)
	return out, true
}

func copyRawSnapshot(s *domain.RawSnapshot) domain.RawSnapshot {
	c := *s
	if s.Narratives != nil {
		c.Narratives = append(json.RawMessage(nil), s.Narratives...)
	}
	if s.Interpretation != nil {
		c.Interpretation = append(json.RawMessage(nil), s.Interpretation...)
	}
	return c
}

var (
	_ storage.SnapshotStore = (*SnapshotStore)(nil)
	_ storage.OutcomeStore  = (*SnapshotStore)(nil)
)
