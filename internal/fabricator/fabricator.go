package fabricator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alphacouncil/core/internal/money"
	"github.com/alphacouncil/core/internal/normalize"
	"github.com/alphacouncil/core/internal/obslog"
	"github.com/alphacouncil/core/internal/resilience"
)

// maxConcurrentIO bounds the fabrication fan-out so one request cannot open
// more simultaneous provider connections than the widest intent needs.
const maxConcurrentIO = 8

// ioNeeds is the fixed intent->raw-IO table. Only raw
// provider IO is listed here; specialist analyses run later via the
// Orchestrator's envelope fan-out.
var ioNeeds = map[string][]string{
	"market_analysis":  {"price", "bars", "news", "social", "whale"},
	"price_check":      {"price"},
	"portfolio_query":  {"portfolio"},
	"forecast_request": {"price", "bars"},
	"goal_planning":     {"portfolio"},
	"educational":      {},
}

// Providers bundles every fallback chain the fabricator may invoke. Each
// chain already embeds its own circuit-breaker manager (internal/resilience)
// so a flaky upstream degrades one provider at a time, not the whole
// fabrication step.
type Providers struct {
	Price     *resilience.FallbackChain[*PriceData]
	Bars      *resilience.FallbackChain[[]Bar]
	News      *resilience.FallbackChain[*ResearchData]
	Social    *resilience.FallbackChain[*SocialData]
	Whale     *resilience.FallbackChain[*WhaleData]
	Portfolio *resilience.FallbackChain[*PortfolioData]
}

// Fabricator builds MarketContext values from raw provider IO.
type Fabricator struct {
	providers Providers
}

func NewFabricator(providers Providers) *Fabricator {
	return &Fabricator{providers: providers}
}

// Build runs the raw IO table for intent concurrently and assembles a
// MarketContext. Determinism: for the same inputs and provider
// responses the produced context is identical regardless of goroutine
// completion order; only TotalLatencyMs varies. This holds because every
// field write below targets a distinct, pre-known MarketContext slot rather
// than an append-ordered slice.
func (f *Fabricator) Build(ctx context.Context, intent, ticker string, accountScope string, userContext map[string]any) *MarketContext {
	log := obslog.New("fabricator")
	start := time.Now()

	mc := New(intent, ticker, userContext)
	needs := ioNeeds[intent]

	var mu sync.Mutex // guards mc field writes and barsResult
	var barsResult []Bar
	var barsFetched bool

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentIO)
	launch := func(name string, fn func()) {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("io", name).Msg("fabricator IO panicked")
				}
			}()
			fn()
			return nil
		})
	}

	for _, need := range needs {
		switch need {
		case "price":
			launch("price", func() {
				if f.providers.Price == nil {
					return
				}
				p, err := f.providers.Price.Execute(ctx, ticker)
				if err != nil {
					log.Warn().Err(err).Str("ticker", ticker).Msg("price fetch exhausted fallback chain")
					return
				}
				adjusted, adj := normalize.ValidateUnitConsistency(p.CurrentPrice, seriesCloses(p.Series))
				if adj.Applied {
					log.Info().Str("ticker", ticker).Str("factor", adj.Factor).Msg("unit mismatch corrected")
					p.CurrentPrice = adjusted
				}
				mu.Lock()
				mc.Price = p
				mu.Unlock()
			})
		case "bars":
			launch("bars", func() {
				if f.providers.Bars == nil {
					return
				}
				bars, err := f.providers.Bars.Execute(ctx, ticker)
				if err != nil {
					log.Warn().Err(err).Str("ticker", ticker).Msg("bars fetch exhausted fallback chain")
					return
				}
				mu.Lock()
				barsResult = bars
				barsFetched = true
				mu.Unlock()
			})
		case "news":
			launch("news", func() {
				if f.providers.News == nil {
					return
				}
				r, err := f.providers.News.Execute(ctx, ticker)
				if err != nil {
					log.Warn().Err(err).Msg("news fetch exhausted fallback chain")
					return
				}
				mu.Lock()
				mc.Research = r
				mu.Unlock()
			})
		case "social":
			launch("social", func() {
				if f.providers.Social == nil {
					return
				}
				s, err := f.providers.Social.Execute(ctx, ticker)
				if err != nil {
					log.Warn().Err(err).Msg("social fetch exhausted fallback chain")
					return
				}
				mu.Lock()
				mc.Social = s
				mu.Unlock()
			})
		case "whale":
			launch("whale", func() {
				if f.providers.Whale == nil {
					return
				}
				w, err := f.providers.Whale.Execute(ctx, ticker)
				if err != nil {
					log.Warn().Err(err).Msg("whale fetch exhausted fallback chain")
					return
				}
				mu.Lock()
				mc.Whale = w
				mu.Unlock()
			})
		case "portfolio":
			launch("portfolio", func() {
				if f.providers.Portfolio == nil {
					return
				}
				p, err := f.providers.Portfolio.Execute(ctx, accountScope)
				if err != nil {
					log.Warn().Err(err).Msg("portfolio fetch exhausted fallback chain")
					return
				}
				mu.Lock()
				mc.Portfolio = p
				mu.Unlock()
			})
		}
	}

	_ = g.Wait()

	if barsFetched {
		if mc.Price == nil {
			mc.Price = &PriceData{Ticker: ticker, Series: barsResult}
		} else {
			mc.Price.Series = barsResult
			adjusted, adj := normalize.ValidateUnitConsistency(mc.Price.CurrentPrice, seriesCloses(barsResult))
			if adj.Applied {
				log.Info().Str("ticker", ticker).Str("factor", adj.Factor).Msg("unit mismatch corrected")
				mc.Price.CurrentPrice = adjusted
			}
		}
	}

	mc.TotalLatencyMs = time.Since(start).Milliseconds()
	return mc
}

func seriesCloses(series []Bar) []money.Money {
	closes := make([]money.Money, 0, len(series))
	for _, b := range series {
		closes = append(closes, b.Close)
	}
	return closes
}
