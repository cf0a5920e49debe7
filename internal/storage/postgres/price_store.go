package postgres

import (
	"context"
	"fmt"
	"time"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/storage"
)

// PriceStore implements storage.PriceStore on the daily_prices table.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds multiple closes atomically. Fails entire batch on any duplicate.
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_prices", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO daily_prices (symbol, date, close) VALUES ($1, $2, $3)`

	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, query, p.Symbol, p.Date.Time(), p.Close); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			if isCheckViolation(err) {
				return storage.ErrInvalidInput
			}
			return fmt.Errorf("insert daily price in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all closes for a symbol, ordered by date ASC.
func (s *PriceStore) GetBySymbol(ctx context.Context, symbol string) (result []*domain.PricePoint, err error) {
	defer func(start time.Time) { observe("get_prices", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT symbol, date, close
		FROM daily_prices
		WHERE symbol = $1
		ORDER BY date ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query daily prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p    domain.PricePoint
			date time.Time
		)
		if err := rows.Scan(&p.Symbol, &date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan daily price: %w", err)
		}
		p.Date = domain.DateOf(date)
		result = append(result, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily prices: %w", err)
	}

	return result, nil
}
