package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alphacouncil/core/internal/normalize"
)

// IntentType is the fixed intent taxonomy.
type IntentType string

const (
	IntentPriceCheck      IntentType = "price_check"
	IntentMarketAnalysis  IntentType = "market_analysis"
	IntentPortfolioQuery  IntentType = "portfolio_query"
	IntentForecastRequest IntentType = "forecast_request"
	IntentGoalPlanning    IntentType = "goal_planning"
	IntentEducational     IntentType = "educational"
)

// needsTable derives the specialist tag set from the intent type. The
// mapping is fixed; the router never invents a needs set of its own.
var needsTable = map[IntentType][]string{
	IntentPriceCheck:      {"price"},
	IntentMarketAnalysis:  {"quant", "forecast", "research", "social", "whale"},
	IntentPortfolioQuery:  {"portfolio"},
	IntentForecastRequest: {"forecast"},
	IntentGoalPlanning:    {"goal", "portfolio"},
	IntentEducational:     {},
}

// defaultFallbackNeeds is used when the router's reply fails to parse.
var defaultFallbackNeeds = []string{"quant", "forecast", "portfolio"}

// Intent is the routed classification.
type Intent struct {
	Type          IntentType `json:"type"`
	PrimaryTicker string     `json:"primary_ticker,omitempty"`
	Needs         []string   `json:"needs"`
	Params        map[string]any `json:"params,omitempty"`
	Reason        string     `json:"reason"`
}

// Router classifies a user query into an Intent using a small, low-temp
// model. Implementations own model plumbing.
type Router interface {
	Route(ctx context.Context, sanitizedQuery string) (string, error)
}

// ClassifyIntent calls router and parses its structured reply. On any parse
// failure it falls back to market_analysis with defaultFallbackNeeds.
func ClassifyIntent(ctx context.Context, router Router, query string) Intent {
	sanitized := sanitizeForRouter(query)

	raw, err := router.Route(ctx, sanitized)
	if err != nil {
		return fallbackIntent("router call failed: " + err.Error())
	}

	var parsed struct {
		Type          string         `json:"type"`
		PrimaryTicker string         `json:"primary_ticker"`
		Reason        string         `json:"reason"`
		Params        map[string]any `json:"params"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return fallbackIntent("router reply did not parse: " + err.Error())
	}

	itype := IntentType(parsed.Type)
	needs, ok := needsTable[itype]
	if !ok {
		return fallbackIntent("router returned unknown intent type " + parsed.Type)
	}

	return Intent{
		Type:          itype,
		PrimaryTicker: parsed.PrimaryTicker,
		Needs:         needs,
		Params:        parsed.Params,
		Reason:        parsed.Reason,
	}
}

func fallbackIntent(reason string) Intent {
	return Intent{
		Type:   IntentMarketAnalysis,
		Needs:  defaultFallbackNeeds,
		Reason: reason,
	}
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

func extractJSON(raw string) string {
	if m := jsonObjectPattern.FindString(raw); m != "" {
		return m
	}
	return raw
}

var (
	dollarTickerPattern = regexp.MustCompile(`\$([A-Za-z]{1,6})\b`)
	bareTickerPattern   = regexp.MustCompile(`\b([A-Z0-9]{2,6})\b`)
)

// stopWords excludes common all-caps tokens that are not ticker symbols.
var stopWords = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "YOU": true, "ARE": true,
	"NOT": true, "BUT": true, "ALL": true, "CAN": true, "HAS": true,
	"WAS": true, "ISA": true, "USD": true, "GBP": true, "ETF": true,
}

// ResolveTickerFromHistory scans history from most recent to oldest,
// preferring $SYMBOL markers, then bare uppercase 2-6 char tokens not in
// stopWords. Returns "" if nothing is found.
func ResolveTickerFromHistory(history []HistoryMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		content := history[i].Content
		if m := dollarTickerPattern.FindStringSubmatch(content); m != nil {
			return normalize.Ticker(m[1])
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		content := history[i].Content
		matches := bareTickerPattern.FindAllString(content, -1)
		for j := len(matches) - 1; j >= 0; j-- {
			tok := strings.ToUpper(matches[j])
			if stopWords[tok] {
				continue
			}
			return normalize.Ticker(tok)
		}
	}
	return ""
}

// ParseProposedQuantity scans text for a share count placed next to ticker
// ("buy 10 AAPL", "10 shares of AAPL", "AAPL x10"), used to size the risk
// gate's implied position from the
// reasoning model's free-text proposal. Returns (0, false) if none is found.
func ParseProposedQuantity(text, ticker string) (float64, bool) {
	if ticker == "" {
		return 0, false
	}
	quoted := regexp.QuoteMeta(ticker)
	pattern := regexp.MustCompile(fmt.Sprintf(`(?i)(\d+(?:\.\d+)?)\s*(?:shares?\s+(?:of\s+)?)?%s\b|\b%s\s*(?:x\s*)?(\d+(?:\.\d+)?)`, quoted, quoted))
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	if raw == "" {
		return 0, false
	}
	qty, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return qty, true
}

// Contradiction is one detected cross-agent disagreement.
type Contradiction string

// DetectContradictions applies the fixed rule set and its mirrors over the
// merged context's signal/label fields.
func DetectContradictions(quantSignal, researchLabel, forecastTrend, whaleImpact, socialLabel string) []string {
	var out []string

	if quantSignal == "Buy" && researchLabel == "Bearish" {
		out = append(out, "Technical indicators suggest a BUY, but News Sentiment is BEARISH.")
	}
	if quantSignal == "Sell" && researchLabel == "Bullish" {
		out = append(out, "Technical indicators suggest a SELL, but News Sentiment is BULLISH.")
	}
	if forecastTrend == "Bullish" && quantSignal == "Sell" {
		out = append(out, "Forecast trend is BULLISH, but technical indicators suggest a SELL.")
	}
	if forecastTrend == "Bearish" && quantSignal == "Buy" {
		out = append(out, "Forecast trend is BEARISH, but technical indicators suggest a BUY.")
	}
	if whaleImpact == "Bullish" && socialLabel == "Bearish" {
		out = append(out, "Institutional whale activity is BULLISH, but retail social sentiment is BEARISH.")
	}
	if whaleImpact == "Bearish" && socialLabel == "Bullish" {
		out = append(out, "Institutional whale activity is BEARISH, but retail social sentiment is BULLISH.")
	}

	return out
}
