// Package outcome computes forward price outcomes anchored at episode starts.
package outcome

import (
	"narrative-lab/internal/domain"
	"narrative-lab/internal/lookup"
	"narrative-lab/internal/metrics"
)

// Config holds forward-return horizons in available price rows.
type Config struct {
	ShortHorizon   int // default 5
	LongHorizon    int // default 10
	DrawdownWindow int // rows after the anchor scanned for drawdown, default 10
}

// DefaultConfig returns 5/10-row horizons and a 10-row drawdown window.
func DefaultConfig() Config {
	return Config{
		ShortHorizon:   5,
		LongHorizon:    10,
		DrawdownWindow: 10,
	}
}

// Calculator computes EpisodeOutcomes against a price index.
type Calculator struct {
	cfg      Config
	sessions lookup.Sessions // optional, for gap diagnostics
}

// NewCalculator creates a calculator. sessions may be nil.
func NewCalculator(cfg Config, sessions lookup.Sessions) *Calculator {
	return &Calculator{cfg: cfg, sessions: sessions}
}

// Compute is a convenience wrapper without calendar diagnostics.
func Compute(idx *lookup.PriceIndex, anchor domain.CalendarDate, cfg Config) (domain.EpisodeOutcome, bool) {
	return NewCalculator(cfg, nil).Compute(idx, anchor)
}

// Compute returns the forward outcome for an episode anchored at anchor.
// ok is false when neither horizon has a return; such outcomes carry no signal.
func (c *Calculator) Compute(idx *lookup.PriceIndex, anchor domain.CalendarDate) (domain.EpisodeOutcome, bool) {
	out := domain.EpisodeOutcome{EpisodeStart: anchor}
	if idx == nil {
		return out, false
	}

	anchorRow, ok := idx.RowAtForwardOffset(anchor, 0)
	if !ok {
		return out, false
	}
	anchorClose := anchorRow.Close
	out.AnchorClose = &anchorClose

	out.Return5d = c.forwardReturn(idx, anchor, anchorClose, c.cfg.ShortHorizon)
	out.Return10d = c.forwardReturn(idx, anchor, anchorClose, c.cfg.LongHorizon)
	out.MaxDrawdown10d = maxDrawdown(idx.Window(anchor, c.cfg.DrawdownWindow+1), anchorClose)

	if out.Return5d == nil && out.Return10d == nil {
		return out, false
	}

	if c.sessions != nil {
		end := idx.Window(anchor, c.cfg.LongHorizon+1)
		out.MissingSessions = lookup.MissingSessions(idx, c.sessions, anchorRow.Date, end[len(end)-1].Date)
	}

	return out, true
}

// ComputeAll computes outcomes for episodes, dropping those without signal.
// Order follows the input.
func (c *Calculator) ComputeAll(idx *lookup.PriceIndex, episodes []domain.Episode) []domain.EpisodeOutcome {
	outcomes := make([]domain.EpisodeOutcome, 0, len(episodes))
	for _, ep := range episodes {
		if o, ok := c.Compute(idx, ep.StartDate); ok {
			outcomes = append(outcomes, o)
		}
	}
	return outcomes
}

func (c *Calculator) forwardReturn(idx *lookup.PriceIndex, anchor domain.CalendarDate, anchorClose float64, horizon int) *float64 {
	future, ok := idx.CloseAtForwardOffset(anchor, horizon)
	if !ok {
		return nil
	}
	r := metrics.Round2((future - anchorClose) / anchorClose * 100)
	return &r
}

// maxDrawdown returns the worst close in window relative to the anchor close,
// as a non-positive percentage. window starts at the anchor row.
func maxDrawdown(window []domain.PricePoint, anchorClose float64) *float64 {
	if len(window) < 2 {
		return nil
	}
	minClose := anchorClose
	for _, p := range window {
		if p.Close < minClose {
			minClose = p.Close
		}
	}
	dd := metrics.Round2((minClose - anchorClose) / anchorClose * 100)
	return &dd
}
