// Package tlh implements a tax-loss-harvesting scanner: a read-only helper
// that surfaces unrealized-loss positions past a holding threshold into
// MarketContext.user_context for the reasoning prompt.
package tlh

import (
	"time"

	"github.com/alphacouncil/core/internal/fabricator"
)

// DefaultHoldingPeriod is the minimum time a losing position must have
// been held before it is surfaced as a harvesting candidate.
const DefaultHoldingPeriod = 31 * 24 * time.Hour

// Candidate is one unrealized-loss position eligible for harvesting.
type Candidate struct {
	Ticker        string  `json:"ticker"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	HeldFor       string  `json:"held_for"`
}

// OpenedAt is supplied per position since fabricator.Position carries no
// open-date field of its own (that detail lives with the external broker
// collaborator); callers that have it pass it in via openedAt.
func Scan(positions []fabricator.Position, openedAt map[string]time.Time, now time.Time, minHolding time.Duration) []Candidate {
	if minHolding <= 0 {
		minHolding = DefaultHoldingPeriod
	}

	var candidates []Candidate
	for _, p := range positions {
		if !p.PnL.IsNegative() {
			continue
		}
		opened, ok := openedAt[p.Ticker]
		if !ok {
			continue
		}
		held := now.Sub(opened)
		if held < minHolding {
			continue
		}
		pnl, _ := p.PnL.Decimal.Float64()
		candidates = append(candidates, Candidate{
			Ticker:        p.Ticker,
			UnrealizedPnL: pnl,
			HeldFor:       held.Round(time.Hour).String(),
		})
	}
	return candidates
}
