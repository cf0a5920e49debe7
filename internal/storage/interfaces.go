package storage

import (
	"context"
	"time"

	"narrative-lab/internal/domain"
)

// SnapshotStore provides access to psychology_snapshots storage.
type SnapshotStore interface {
	// Insert adds a new snapshot record. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, s *domain.RawSnapshot) error

	// GetBySymbolRange retrieves snapshots for a symbol observed within
	// [start, end] (inclusive), ordered by observed_at ASC.
	GetBySymbolRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.RawSnapshot, error)

	// ListSymbols returns all symbols with at least one snapshot, sorted ASC.
	ListSymbols(ctx context.Context) ([]string, error)
}

// PriceStore provides access to daily_prices storage.
type PriceStore interface {
	// InsertBulk adds multiple closes atomically.
	// Returns ErrDuplicateKey if any (symbol, date) exists or repeats in the batch.
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetBySymbol retrieves the full close series for a symbol, ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error)
}

// OutcomeStore attaches computed narrative outcomes to snapshot records.
type OutcomeStore interface {
	// SaveNarrativeOutcomes overwrites the narrative_outcomes of a snapshot.
	// Returns ErrNotFound if the snapshot does not exist.
	SaveNarrativeOutcomes(ctx context.Context, snapshotID string, outcomes []domain.NarrativeOutcome) error

	// GetNarrativeOutcomes returns the stored outcomes of a snapshot, nil if none
	// were saved yet. Returns ErrNotFound if the snapshot does not exist.
	GetNarrativeOutcomes(ctx context.Context, snapshotID string) ([]domain.NarrativeOutcome, error)
}
