// Package fabricator builds the shared MarketContext a request's specialist
// fan-out and reasoning step operate on, running the raw IO
// (price/bars/news/social/whale fetches) concurrently through resilience
// fallback chains before any specialist analysis runs.
package fabricator

import (
	"time"

	"github.com/alphacouncil/core/internal/envelope"
	"github.com/alphacouncil/core/internal/money"
)

// Bar is one OHLCV sample. Series are ascending and
// restartable across consumers.
type Bar struct {
	TimestampMs int64       `json:"timestamp"`
	Open        money.Money `json:"open"`
	High        money.Money `json:"high"`
	Low         money.Money `json:"low"`
	Close       money.Money `json:"close"`
	Volume      money.Money `json:"volume"`
}

// PriceData is the price slice of MarketContext.
type PriceData struct {
	Ticker       string      `json:"ticker"`
	CurrentPrice money.Money `json:"current_price"`
	Currency     string      `json:"currency"`
	Source       string      `json:"source"`
	Series       []Bar       `json:"series"`
}

// Article is one research item.
type Article struct {
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Sentiment float64   `json:"sentiment"`
	Published time.Time `json:"published"`
}

// ResearchData is the news/sentiment slice.
type ResearchData struct {
	Ticker         string    `json:"ticker"`
	SentimentScore float64   `json:"sentiment_score"`
	SentimentLabel string    `json:"sentiment_label"`
	Articles       []Article `json:"articles"`
}

// Position is one portfolio holding.
type Position struct {
	Ticker       string      `json:"ticker"`
	Quantity     money.Money `json:"quantity"`
	AvgCost      money.Money `json:"avg_cost"`
	CurrentValue money.Money `json:"current_value"`
	PnL          money.Money `json:"pnl"`
}

// PortfolioData is the account-scope slice.
type PortfolioData struct {
	TotalValue    money.Money  `json:"total_value"`
	TotalInvested money.Money `json:"total_invested"`
	TotalPnL      money.Money  `json:"total_pnl"`
	PnLPercent    float64      `json:"pnl_percent"`
	CashTotal     money.Money  `json:"cash_total"`
	CashFree      money.Money  `json:"cash_free"`
	Positions     []Position   `json:"positions"`
}

// SocialData, WhaleData mirror ResearchData's shape ("analogous
// shapes") with provider-specific content under a generic payload, since
// their concrete fields come from external collaborators this core doesn't
// define.
type SocialData struct {
	Ticker  string         `json:"ticker"`
	Payload map[string]any `json:"payload"`
}

type WhaleData struct {
	Ticker  string         `json:"ticker"`
	Payload map[string]any `json:"payload"`
}

// MarketContext is the aggregate carrier passed between orchestrator
// steps. All fields are optional after construction.
type MarketContext struct {
	Intent      string         `json:"intent"`
	Ticker      string         `json:"ticker,omitempty"`
	UserContext map[string]any `json:"user_context"`

	Price     *PriceData     `json:"price,omitempty"`
	Quant     map[string]any `json:"quant,omitempty"`
	Forecast  map[string]any `json:"forecast,omitempty"`
	Portfolio *PortfolioData `json:"portfolio,omitempty"`
	Research  *ResearchData  `json:"research,omitempty"`
	Social    *SocialData    `json:"social,omitempty"`
	Whale     *WhaleData     `json:"whale,omitempty"`
	Goal      map[string]any `json:"goal,omitempty"`

	AgentsExecuted []string              `json:"agents_executed"`
	AgentsFailed   []string              `json:"agents_failed"`
	Telemetry      []envelope.Telemetry  `json:"telemetry"`
	TotalLatencyMs int64                 `json:"total_latency_ms"`
	Reasoning      string                `json:"reasoning,omitempty"`
}

func New(intent, ticker string, userContext map[string]any) *MarketContext {
	if userContext == nil {
		userContext = map[string]any{}
	}
	return &MarketContext{
		Intent:         intent,
		Ticker:         ticker,
		UserContext:    userContext,
		AgentsExecuted: []string{},
		AgentsFailed:   []string{},
		Telemetry:      []envelope.Telemetry{},
	}
}

// MarkExecuted records a specialist's outcome, maintaining the
// agents_executed ∩ agents_failed = ∅ invariant.
func (c *MarketContext) MarkExecuted(name string, failed bool) {
	if failed {
		c.AgentsFailed = append(c.AgentsFailed, name)
		return
	}
	c.AgentsExecuted = append(c.AgentsExecuted, name)
}
