package domain

// PricePoint is one daily close for a symbol.
// Corresponds to daily_prices table.
type PricePoint struct {
	Symbol string
	Date   CalendarDate
	Close  float64 // > 0
}
