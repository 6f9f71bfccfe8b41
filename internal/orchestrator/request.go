// Package orchestrator implements the Orchestrator lifecycle:
// routing, context fabrication, specialist fan-out with the failure
// recovery ladder, contradiction detection, reasoning, the bounded tool
// loop, adversarial risk debate, and finalization.
package orchestrator

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alphacouncil/core/internal/risk"
)

// AccountScope is the user's requested account view.
type AccountScope string

const (
	ScopeInvest AccountScope = "Invest"
	ScopeISA    AccountScope = "ISA"
	ScopeAll    AccountScope = "All"
)

// HistoryMessage is one prior turn, used for ticker-from-history resolution
// and the reasoning prompt's conversation window.
type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Request is the entry's input.
type Request struct {
	Query         string
	Ticker        string
	AccountScope  AccountScope
	ConversationID string
	History       []HistoryMessage
	CorrelationID string

	// RecentTrades feeds the risk agent's wash-sale gate; the
	// caller owns sourcing this from its broker/ledger system of record.
	RecentTrades []risk.RecentTrade

	// PositionOpenedAt maps ticker to the date the position was opened,
	// sourced from the caller's broker system like RecentTrades. When
	// present it feeds the tax-loss-harvesting scan of the merged portfolio.
	PositionOpenedAt map[string]time.Time
}

// normalizeRequest fills CorrelationID if absent.
func normalizeRequest(r Request) Request {
	if r.CorrelationID == "" {
		r.CorrelationID = uuid.New().String()
	}
	return r
}

const maxRoutedQueryLen = 500

func sanitizeForRouter(query string) string {
	q := strings.TrimSpace(query)
	if len(q) > maxRoutedQueryLen {
		q = q[:maxRoutedQueryLen]
	}
	return q
}

// FinalAnswer is the Orchestrator's return value.
type FinalAnswer struct {
	Content       string         `json:"content"`
	ResponseID    string         `json:"response_id,omitempty"`
	Context       map[string]any `json:"context"`
	CorrelationID string         `json:"correlation_id"`
}
