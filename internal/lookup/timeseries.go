package lookup

import (
	"errors"
	"fmt"
	"sort"

	"narrative-lab/internal/domain"
)

// Errors returned when building a PriceIndex.
var (
	ErrNoPriceData   = errors.New("no price data available")
	ErrDuplicateDate = errors.New("duplicate price date")
	ErrInvalidClose  = errors.New("close price must be positive")
)

// PriceIndex answers alignment queries over a symbol's daily closes.
// Offsets count available rows, not exchange sessions: a missing day in
// the series lengthens the effective window in calendar time.
type PriceIndex struct {
	points []domain.PricePoint // sorted by date ASC, unique dates
}

// NewPriceIndex sorts points by date and validates them.
// Points may arrive in any order. Returns ErrNoPriceData for an empty series.
func NewPriceIndex(points []*domain.PricePoint) (*PriceIndex, error) {
	if len(points) == 0 {
		return nil, ErrNoPriceData
	}

	sorted := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		if !(p.Close > 0) {
			return nil, fmt.Errorf("%w: %s on %s", ErrInvalidClose, p.Symbol, p.Date)
		}
		sorted = append(sorted, *p)
	}
	if len(sorted) == 0 {
		return nil, ErrNoPriceData
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDate, sorted[i].Date)
		}
	}

	return &PriceIndex{points: sorted}, nil
}

// Len returns the number of rows in the index.
func (x *PriceIndex) Len() int {
	return len(x.points)
}

// First returns the earliest row.
func (x *PriceIndex) First() domain.PricePoint {
	return x.points[0]
}

// Last returns the latest row.
func (x *PriceIndex) Last() domain.PricePoint {
	return x.points[len(x.points)-1]
}

// searchOnOrAfter returns the index of the first row with date >= d,
// or len(points) when none exists.
func (x *PriceIndex) searchOnOrAfter(d domain.CalendarDate) int {
	return sort.Search(len(x.points), func(i int) bool {
		return !x.points[i].Date.Before(d)
	})
}

// FirstCloseOnOrAfter returns the first row dated on or after d.
func (x *PriceIndex) FirstCloseOnOrAfter(d domain.CalendarDate) (domain.PricePoint, bool) {
	i := x.searchOnOrAfter(d)
	if i >= len(x.points) {
		return domain.PricePoint{}, false
	}
	return x.points[i], true
}

// RowAtForwardOffset returns the n-th available row at or after anchor
// (0 = first row on/after anchor).
func (x *PriceIndex) RowAtForwardOffset(anchor domain.CalendarDate, n int) (domain.PricePoint, bool) {
	if n < 0 {
		return domain.PricePoint{}, false
	}
	i := x.searchOnOrAfter(anchor) + n
	if i >= len(x.points) {
		return domain.PricePoint{}, false
	}
	return x.points[i], true
}

// CloseAtForwardOffset returns the close of the n-th available row at or after anchor.
// Returns false if fewer than n+1 rows exist on/after anchor.
func (x *PriceIndex) CloseAtForwardOffset(anchor domain.CalendarDate, n int) (float64, bool) {
	p, ok := x.RowAtForwardOffset(anchor, n)
	if !ok {
		return 0, false
	}
	return p.Close, true
}

// Window returns up to count rows starting at the first row on/after anchor.
// The returned slice must not be modified.
func (x *PriceIndex) Window(anchor domain.CalendarDate, count int) []domain.PricePoint {
	if count <= 0 {
		return nil
	}
	start := x.searchOnOrAfter(anchor)
	end := start + count
	if end > len(x.points) {
		end = len(x.points)
	}
	return x.points[start:end]
}

// Contains reports whether a row exists for exactly d.
func (x *PriceIndex) Contains(d domain.CalendarDate) bool {
	p, ok := x.FirstCloseOnOrAfter(d)
	return ok && p.Date.Equal(d)
}
