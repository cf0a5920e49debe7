package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore and storage.OutcomeStore
// on the psychology_snapshots table.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.SnapshotStore = (*SnapshotStore)(nil)
	_ storage.OutcomeStore  = (*SnapshotStore)(nil)
)

// Insert adds a new snapshot. Returns ErrDuplicateKey if id exists.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.RawSnapshot) (err error) {
	defer func(start time.Time) { observe("insert_snapshot", start, err) }(time.Now())

	query := `
		INSERT INTO psychology_snapshots (id, symbol, observed_at, narratives, interpretation)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query,
		snap.ID, snap.Symbol, snap.ObservedAt.UTC(),
		nullableJSON(snap.Narratives), nullableJSON(snap.Interpretation),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetBySymbolRange retrieves snapshots for a symbol within [start, end], ordered by observed_at ASC.
func (s *SnapshotStore) GetBySymbolRange(ctx context.Context, symbol string, start, end time.Time) (result []*domain.RawSnapshot, err error) {
	defer func(t0 time.Time) { observe("get_snapshots", t0, err) }(time.Now())

	query := `
		SELECT id, symbol, observed_at, narratives, interpretation
		FROM psychology_snapshots
		WHERE symbol = $1 AND observed_at >= $2 AND observed_at <= $3
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snap           domain.RawSnapshot
			narratives     []byte
			interpretation []byte
		)
		if err := rows.Scan(&snap.ID, &snap.Symbol, &snap.ObservedAt, &narratives, &interpretation); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.ObservedAt = snap.ObservedAt.UTC()
		snap.Narratives = json.RawMessage(narratives)
		snap.Interpretation = json.RawMessage(interpretation)
		result = append(result, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return result, nil
}

// ListSymbols returns all distinct symbols, sorted ASC.
func (s *SnapshotStore) ListSymbols(ctx context.Context) (symbols []string, err error) {
	defer func(start time.Time) { observe("list_symbols", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM psychology_snapshots ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbols: %w", err)
	}

	return symbols, nil
}

// SaveNarrativeOutcomes overwrites narrative_outcomes on a snapshot.
// Returns ErrNotFound if the snapshot does not exist.
func (s *SnapshotStore) SaveNarrativeOutcomes(ctx context.Context, snapshotID string, outcomes []domain.NarrativeOutcome) (err error) {
	defer func(start time.Time) { observe("save_outcomes", start, err) }(time.Now())

	if outcomes == nil {
		outcomes = []domain.NarrativeOutcome{}
	}
	data, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("marshal narrative outcomes: %w", err)
	}

	query := `
		UPDATE psychology_snapshots
		SET narrative_outcomes = $2, outcomes_updated_at = now()
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, snapshotID, data)
	if err != nil {
		return fmt.Errorf("update narrative outcomes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetNarrativeOutcomes returns the stored outcomes of a snapshot, nil if none were saved.
func (s *SnapshotStore) GetNarrativeOutcomes(ctx context.Context, snapshotID string) (outcomes []domain.NarrativeOutcome, err error) {
	defer func(start time.Time) { observe("get_outcomes", start, err) }(time.Now())

	var data []byte
	err = s.pool.QueryRow(ctx,
		`SELECT narrative_outcomes FROM psychology_snapshots WHERE id = $1`, snapshotID,
	).Scan(&data)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query narrative outcomes: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	if err := json.Unmarshal(data, &outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal narrative outcomes: %w", err)
	}
	return outcomes, nil
}

// nullableJSON maps an empty document to SQL NULL.
func nullableJSON(doc json.RawMessage) any {
	if len(doc) == 0 {
		return nil
	}
	return []byte(doc)
}
