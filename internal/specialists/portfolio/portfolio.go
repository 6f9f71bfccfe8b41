// Package portfolio implements the PortfolioAgent specialist:
// a snapshot leaf over an external broker collaborator, with an optimistic
// local-update path for post-trade UI consistency before broker
// confirmation arrives. Rollback on broker failure is intentionally not
// implemented; the broker remains the system of record.
package portfolio

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alphacouncil/core/internal/cache"
	"github.com/alphacouncil/core/internal/errkind"
	"github.com/alphacouncil/core/internal/fabricator"
	"github.com/alphacouncil/core/internal/money"
)

const (
	cacheKey = "current_portfolio"
	cacheTTL = 3600 * time.Second
)

// Provider is the external broker/account collaborator.
type Provider interface {
	Fetch(ctx context.Context, accountScope string) (*fabricator.PortfolioData, error)
}

// Agent is the PortfolioAgent specialist. It also owns the cache directly so
// UpdateLocal can apply an optimistic mutation outside the envelope's
// call-and-cache flow.
type Agent struct {
	provider Provider
	cache    cache.Cache
}

func New(provider Provider, c cache.Cache) *Agent {
	return &Agent{provider: provider, cache: c}
}

func (a *Agent) Name() string { return "portfolio" }

// CacheKey and CacheTTL implement envelope.CacheKeyOverride/CacheTTLOverride
// so the envelope's own caching uses the fixed "current_portfolio"
// key and 3600s TTL instead of the "<name>:<ticker>" default.
func (a *Agent) CacheKey(map[string]any) string { return cacheKey }
func (a *Agent) CacheTTL() time.Duration        { return cacheTTL }

// Analyze expects input{"account_scope": string}.
func (a *Agent) Analyze(ctx context.Context, input map[string]any) (map[string]any, error) {
	accountScope, _ := input["account_scope"].(string)
	if accountScope == "" {
		accountScope = "All"
	}

	snapshot, err := a.provider.Fetch(ctx, accountScope)
	if err != nil {
		return nil, errkind.Wrap(errkind.UpstreamUnavailable, "portfolio fetch failed", err)
	}

	return toMap(snapshot), nil
}

// UpdateLocal applies an optimistic post-trade adjustment directly into the
// cached snapshot, bypassing a fresh broker fetch. side is
// "buy" or "sell".
func (a *Agent) UpdateLocal(ctx context.Context, ticker string, qty, price money.Money, side string) error {
	var cached map[string]any
	if a.cache == nil || !a.cache.Get(ctx, cacheKey, &cached) {
		return errkind.New(errkind.NotFound, "no cached portfolio snapshot to update")
	}

	snapshot := FromMap(cached)
	applyTrade(snapshot, ticker, qty, price, side)

	return a.cache.Set(ctx, cacheKey, toMap(snapshot), cacheTTL)
}

func applyTrade(snapshot *fabricator.PortfolioData, ticker string, qty, price money.Money, side string) {
	delta := qty.Mul(price)
	if side == "sell" {
		delta = money.New(delta.Decimal.Neg())
	}

	found := false
	for i := range snapshot.Positions {
		if snapshot.Positions[i].Ticker != ticker {
			continue
		}
		found = true
		switch side {
		case "sell":
			snapshot.Positions[i].Quantity = snapshot.Positions[i].Quantity.Sub(qty)
		default:
			snapshot.Positions[i].Quantity = snapshot.Positions[i].Quantity.Add(qty)
		}
		snapshot.Positions[i].CurrentValue = snapshot.Positions[i].Quantity.Mul(price)
	}
	if !found && side != "sell" {
		snapshot.Positions = append(snapshot.Positions, fabricator.Position{
			Ticker:       ticker,
			Quantity:     qty,
			AvgCost:      price,
			CurrentValue: qty.Mul(price),
		})
	}

	snapshot.CashFree = snapshot.CashFree.Sub(delta)
	snapshot.TotalValue = sumPositions(snapshot.Positions).Add(snapshot.CashTotal)
}

func sumPositions(positions []fabricator.Position) money.Money {
	total := money.Zero
	for _, p := range positions {
		total = total.Add(p.CurrentValue)
	}
	return total
}

func toMap(p *fabricator.PortfolioData) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	positions := make([]map[string]any, len(p.Positions))
	for i, pos := range p.Positions {
		positions[i] = map[string]any{
			"ticker":        pos.Ticker,
			"quantity":      pos.Quantity,
			"avg_cost":      pos.AvgCost,
			"current_value": pos.CurrentValue,
			"pnl":           pos.PnL,
		}
	}
	return map[string]any{
		"total_value":    p.TotalValue,
		"total_invested": p.TotalInvested,
		"total_pnl":      p.TotalPnL,
		"pnl_percent":    p.PnLPercent,
		"cash_total":     p.CashTotal,
		"cash_free":      p.CashFree,
		"positions":      positions,
	}
}

// moneyFromAny accepts a money.Money directly (same-process caches), the
// JSON string money.Money marshals to (cache.Cache round-trips everything
// through marshal/unmarshal), or a bare float64 as a last resort.
func moneyFromAny(v any) money.Money {
	switch val := v.(type) {
	case money.Money:
		return val
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return money.Zero
		}
		return money.New(d)
	case float64:
		return money.FromFloat(val)
	default:
		return money.Zero
	}
}

// FromMap reverses toMap so an envelope-merged result (or a cached
// snapshot) can be restored into a *fabricator.PortfolioData.
func FromMap(m map[string]any) *fabricator.PortfolioData {
	p := &fabricator.PortfolioData{}
	if tv, ok := m["total_value"]; ok {
		p.TotalValue = moneyFromAny(tv)
	}
	if cf, ok := m["cash_free"]; ok {
		p.CashFree = moneyFromAny(cf)
	}
	if ct, ok := m["cash_total"]; ok {
		p.CashTotal = moneyFromAny(ct)
	}
	if positions, ok := m["positions"].([]any); ok {
		for _, raw := range positions {
			if pos, ok := raw.(map[string]any); ok {
				p.Positions = append(p.Positions, positionFromMap(pos))
			}
		}
	}
	return p
}

func positionFromMap(pos map[string]any) fabricator.Position {
	var entry fabricator.Position
	entry.Ticker, _ = pos["ticker"].(string)
	if q, ok := pos["quantity"]; ok {
		entry.Quantity = moneyFromAny(q)
	}
	if cv, ok := pos["current_value"]; ok {
		entry.CurrentValue = moneyFromAny(cv)
	}
	if ac, ok := pos["avg_cost"]; ok {
		entry.AvgCost = moneyFromAny(ac)
	}
	if pnl, ok := pos["pnl"]; ok {
		entry.PnL = moneyFromAny(pnl)
	}
	return entry
}
