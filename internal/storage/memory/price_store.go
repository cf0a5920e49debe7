package memory

import (
	"context"
	"sort"
	"sync"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/storage"
)

type priceKey struct {
	symbol string
	date   domain.CalendarDate
}

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[priceKey]*domain.PricePoint
}

// NewPriceStore creates a new in-memory daily price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[priceKey]*domain.PricePoint),
	}
}

// InsertBulk adds multiple closes. Fails entire batch on duplicate.
func (s *PriceStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[priceKey]struct{}, len(points))

	// First pass: validate and check duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := priceKey{p.Symbol, p.Date}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		pointCopy := *p
		s.data[priceKey{p.Symbol, p.Date}] = &pointCopy
	}

	return nil
}

// GetBySymbol retrieves all closes for a symbol, ordered by date ASC.
func (s *PriceStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for k, p := range s.data {
		if k.symbol == symbol {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

var _ storage.PriceStore = (*PriceStore)(nil)
