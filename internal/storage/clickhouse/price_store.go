package clickhouse

import (
	"context"
	"fmt"
	"time"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/storage"
)

// PriceStore implements storage.PriceStore on a ReplacingMergeTree daily_prices table.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds multiple closes. Fails entire batch on duplicate (symbol, date).
// MergeTree does not enforce keys, so duplicates are checked before insert.
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_prices", start, err) }(time.Now())

	type key struct {
		symbol string
		date   domain.CalendarDate
	}
	seen := make(map[key]struct{}, len(points))
	bySymbol := make(map[string][]domain.CalendarDate)
	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{p.Symbol, p.Date}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		bySymbol[p.Symbol] = append(bySymbol[p.Symbol], p.Date)
	}

	// Check for duplicates against existing rows
	for symbol, dates := range bySymbol {
		existing, err := s.existingDates(ctx, symbol)
		if err != nil {
			return fmt.Errorf("check existing dates: %w", err)
		}
		for _, d := range dates {
			if _, ok := existing[d]; ok {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO daily_prices (symbol, date, close)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Symbol, p.Date.Time(), p.Close); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all closes for a symbol, ordered by date ASC.
func (s *PriceStore) GetBySymbol(ctx context.Context, symbol string) (points []*domain.PricePoint, err error) {
	defer func(start time.Time) { observe("get_prices", start, err) }(time.Now())

	query := `
		SELECT symbol, date, close
		FROM daily_prices FINAL
		WHERE symbol = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query daily prices: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func (s *PriceStore) existingDates(ctx context.Context, symbol string) (map[domain.CalendarDate]struct{}, error) {
	rows, err := s.conn.Query(ctx, `SELECT date FROM daily_prices FINAL WHERE symbol = ?`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.CalendarDate]struct{})
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out[domain.DateOf(d)] = struct{}{}
	}
	return out, rows.Err()
}

// scanPricePoints scans multiple rows.
func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var (
			p    domain.PricePoint
			date time.Time
		)
		if err := rows.Scan(&p.Symbol, &date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan daily price row: %w", err)
		}
		p.Date = domain.DateOf(date)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily price rows: %w", err)
	}

	return points, nil
}
