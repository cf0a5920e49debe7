package pipeline

import (
	"context"
	"fmt"
	"time"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/lookup"
	"narrative-lab/internal/storage"
)

// Sufficiency check names.
const (
	CheckSnapshots      = "snapshots_in_window"
	CheckPriceRows      = "price_rows"
	CheckPriceCoverage  = "price_coverage"
	CheckPriceIntegrity = "price_integrity"
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SymbolSufficiency holds the checks for one symbol.
type SymbolSufficiency struct {
	Symbol  string
	Checks  []SufficiencyCheck
	AllPass bool
}

// SufficiencyChecker reports whether each symbol has enough data for
// meaningful outcome statistics. It never blocks a batch.
type SufficiencyChecker struct {
	snapshots    storage.SnapshotStore
	prices       storage.PriceStore
	lookbackDays int
	minSnapshots int
	minPriceRows int
	now          func() time.Time
}

// NewSufficiencyChecker creates a checker. A symbol needs at least
// minSnapshots snapshots in the lookback window and longHorizon+1 closes.
func NewSufficiencyChecker(snapshots storage.SnapshotStore, prices storage.PriceStore, lookbackDays, minSnapshots, longHorizon int) *SufficiencyChecker {
	return &SufficiencyChecker{
		snapshots:    snapshots,
		prices:       prices,
		lookbackDays: lookbackDays,
		minSnapshots: minSnapshots,
		minPriceRows: longHorizon + 1,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (c *SufficiencyChecker) WithClock(now func() time.Time) *SufficiencyChecker {
	c.now = now
	return c
}

// Check runs all checks for each symbol, in order.
func (c *SufficiencyChecker) Check(ctx context.Context, symbols []string) ([]SymbolSufficiency, error) {
	now := c.now()
	out := make([]SymbolSufficiency, 0, len(symbols))

	for _, symbol := range symbols {
		snaps, err := c.snapshots.GetBySymbolRange(ctx, symbol, now.AddDate(0, 0, -c.lookbackDays), now)
		if err != nil {
			return nil, fmt.Errorf("sufficiency %s: load snapshots: %w", symbol, err)
		}
		points, err := c.prices.GetBySymbol(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("sufficiency %s: load prices: %w", symbol, err)
		}

		checks := []SufficiencyCheck{
			c.checkSnapshots(snaps),
			c.checkPriceRows(points),
		}
		idx, idxErr := lookup.NewPriceIndex(points)
		checks = append(checks, checkPriceCoverage(snaps, idx), checkPriceIntegrity(points, idxErr))

		res := SymbolSufficiency{Symbol: symbol, Checks: checks, AllPass: true}
		for _, ch := range checks {
			res.AllPass = res.AllPass && ch.Pass
		}
		out = append(out, res)
	}

	return out, nil
}

func (c *SufficiencyChecker) checkSnapshots(snaps []*domain.RawSnapshot) SufficiencyCheck {
	return SufficiencyCheck{
		Name:      CheckSnapshots,
		Threshold: fmt.Sprintf(">= %d in %d days", c.minSnapshots, c.lookbackDays),
		Actual:    fmt.Sprintf("%d", len(snaps)),
		Pass:      len(snaps) >= c.minSnapshots,
	}
}

func (c *SufficiencyChecker) checkPriceRows(points []*domain.PricePoint) SufficiencyCheck {
	return SufficiencyCheck{
		Name:      CheckPriceRows,
		Threshold: fmt.Sprintf(">= %d", c.minPriceRows),
		Actual:    fmt.Sprintf("%d", len(points)),
		Pass:      len(points) >= c.minPriceRows,
	}
}

// checkPriceCoverage passes when the close series spans the snapshot window.
func checkPriceCoverage(snaps []*domain.RawSnapshot, idx *lookup.PriceIndex) SufficiencyCheck {
	check := SufficiencyCheck{Name: CheckPriceCoverage, Threshold: "prices span snapshot dates"}
	switch {
	case len(snaps) == 0:
		check.Actual = "no snapshots"
		return check
	case idx == nil:
		check.Actual = "no usable prices"
		return check
	}

	firstSnap := domain.DateOf(snaps[0].ObservedAt)
	lastSnap := domain.DateOf(snaps[len(snaps)-1].ObservedAt)
	first, last := idx.First().Date, idx.Last().Date

	check.Actual = fmt.Sprintf("prices %s..%s, snapshots %s..%s", first, last, firstSnap, lastSnap)
	check.Pass = !first.After(firstSnap) && !last.Before(lastSnap)
	return check
}

func checkPriceIntegrity(points []*domain.PricePoint, idxErr error) SufficiencyCheck {
	check := SufficiencyCheck{Name: CheckPriceIntegrity, Threshold: "positive, unique dates"}
	switch {
	case len(points) == 0:
		check.Actual = "no prices"
	case idxErr != nil:
		check.Actual = idxErr.Error()
	default:
		check.Actual = "ok"
		check.Pass = true
	}
	return check
}
