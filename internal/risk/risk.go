// Package risk implements the adversarial risk critic and ACE (Adversarial
// Confidence Estimation) robustness scoring.
package risk

import (
	"context"
	"regexp"
	"strings"

	"github.com/alphacouncil/core/internal/money"
	"github.com/alphacouncil/core/internal/obslog"
)

// Status is the risk verdict's outcome.
type Status string

const (
	Approved Status = "Approved"
	Flagged  Status = "Flagged"
	Blocked  Status = "Blocked"
)

// Verdict is the Risk agent's structured output.
type Verdict struct {
	Status               Status  `json:"status"`
	Confidence           float64 `json:"confidence"`
	RiskAssessment       string  `json:"risk_assessment"`
	ComplianceNotes      string  `json:"compliance_notes"`
	DebateRefutation     string  `json:"debate_refutation"`
	RequiresHumanApproval bool   `json:"requires_human_approval"`
}

// Critic is the LLM-backed side of the risk review: given a structured
// context block and the proposed strategy text, returns a parsed Verdict.
// Implementations call a "contrarian" system-prompted model; this package
// owns only the deterministic gates and scoring, not model plumbing.
type Critic interface {
	Review(ctx context.Context, portfolioValue, cash money.Money, ticker, proposedText string) (Verdict, error)
}

// RecentTrade is one entry from the wash-sale lookback window.
type RecentTrade struct {
	Ticker    string
	Side      string // "buy" or "sell"
	Realized  money.Money
	DaysAgo   int
}

var tradeKeywords = regexp.MustCompile(`(?i)\b(buy|sell|trade|order|execute|place an? order)\b`)
var buyKeywords = regexp.MustCompile(`(?i)\b(buy|purchase|accumulate|add to)\b`)

// Gate applies the Risk agent's deterministic checks on top of a critic's
// LLM-produced verdict. These run regardless of what the LLM decided.
type Gate struct {
	PositionSizeLimitPct float64 // fraction of portfolio value, e.g. 0.05
	WashSaleWindowDays   int     // e.g. 30
}

func DefaultGate() Gate {
	return Gate{PositionSizeLimitPct: 0.05, WashSaleWindowDays: 30}
}

// Apply hardens an LLM verdict with the position-size and wash-sale gates,
// and forces human approval whenever proposedText names a trade action.
func (g Gate) Apply(v Verdict, proposedText string, portfolioValue, impliedPositionValue money.Money, recentTrades []RecentTrade, proposalTicker string, proposalIsBuy bool) Verdict {
	if tradeKeywords.MatchString(proposedText) {
		v.RequiresHumanApproval = true
	}

	if !portfolioValue.IsZero() {
		pct, _ := impliedPositionValue.Div(portfolioValue).Float64()
		if pct > g.PositionSizeLimitPct {
			v = escalate(v, Flagged, "position size "+impliedPositionValue.String()+" exceeds portfolio limit")
		}
	}

	if proposalIsBuy {
		for _, t := range recentTrades {
			if t.Ticker == proposalTicker && t.Side == "sell" && t.Realized.IsNegative() && t.DaysAgo <= g.WashSaleWindowDays {
				v = escalate(v, Blocked, "wash-sale: loss-sale of "+proposalTicker+" within window")
				break
			}
		}
	}

	return v
}

// escalate raises v.Status to at least floor, never downgrading it, and
// appends reason to ComplianceNotes.
func escalate(v Verdict, floor Status, reason string) Verdict {
	if severity(v.Status) < severity(floor) {
		v.Status = floor
	}
	if v.ComplianceNotes == "" {
		v.ComplianceNotes = reason
	} else {
		v.ComplianceNotes = v.ComplianceNotes + "; " + reason
	}
	return v
}

func severity(s Status) int {
	switch s {
	case Blocked:
		return 2
	case Flagged:
		return 1
	default:
		return 0
	}
}

// DebateTurn is one round of the adversarial rebuttal loop.
type DebateTurn struct {
	Turn       int    `json:"turn"`
	Status     Status `json:"status"`
	Refutation string `json:"refutation"`
}

// DebateTrace is the ordered record of every rebuttal turn, used to compute
// the ACE score.
type DebateTrace []DebateTurn

// Rebutter rewrites a strategy to address a refutation; the Orchestrator
// supplies this via the reasoning model.
type Rebutter func(ctx context.Context, proposedText, refutation string) (string, error)

// RunDebate performs the Risk agent's bounded debate loop: at most one
// rebuttal turn. Returns the final verdict and the full trace.
func RunDebate(ctx context.Context, critic Critic, rebut Rebutter, portfolioValue, cash money.Money, ticker, proposedText string, gate Gate, impliedPositionValue money.Money, recentTrades []RecentTrade, proposalIsBuy bool) (Verdict, DebateTrace) {
	log := obslog.New("risk")
	var trace DebateTrace

	v, err := critic.Review(ctx, portfolioValue, cash, ticker, proposedText)
	if err != nil {
		log.Error().Err(err).Msg("risk critic call failed, defaulting to Flagged")
		v = Verdict{Status: Flagged, Confidence: 0, RiskAssessment: "risk critic unavailable", RequiresHumanApproval: true}
	}
	v = gate.Apply(v, proposedText, portfolioValue, impliedPositionValue, recentTrades, ticker, proposalIsBuy)
	trace = append(trace, DebateTurn{Turn: 1, Status: v.Status, Refutation: v.DebateRefutation})

	if v.Status == Approved {
		return v, trace
	}

	revised, err := rebut(ctx, proposedText, v.DebateRefutation)
	if err != nil {
		log.Warn().Err(err).Msg("rebuttal generation failed, keeping original verdict")
		return v, trace
	}

	v2, err := critic.Review(ctx, portfolioValue, cash, ticker, revised)
	if err != nil {
		log.Error().Err(err).Msg("risk critic re-review failed")
		return v, trace
	}
	v2 = gate.Apply(v2, revised, portfolioValue, impliedPositionValue, recentTrades, ticker, proposalIsBuy)
	trace = append(trace, DebateTurn{Turn: 2, Status: v2.Status, Refutation: v2.DebateRefutation})

	return v2, trace
}

var (
	resolutionPattern = regexp.MustCompile(`(?i)\b(addressed|resolved|fixed)\b`)
	negationPattern   = regexp.MustCompile(`(?i)\b(not|never|un\w*|failed to)\b`)
)

// Score computes the ACE robustness score from a debate trace and the final
// status.
func Score(trace DebateTrace, final Status) float64 {
	if len(trace) == 0 {
		if final == Approved {
			return 1.0
		}
		return 0.5
	}

	rebuttals := len(trace) - 1
	score := 1.0 - 0.1*float64(rebuttals)

	switch final {
	case Blocked:
		score *= 0.2
	case Flagged:
		score *= 0.6
	}

	for _, turn := range trace {
		if resolutionPattern.MatchString(turn.Refutation) && !negationPattern.MatchString(turn.Refutation) {
			score += 0.05
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Label maps an ACE score to its robustness label.
func Label(score float64) string {
	switch {
	case score >= 0.85:
		return "Battle-Tested"
	case score >= 0.70:
		return "Verified"
	case score >= 0.50:
		return "Cautionary"
	default:
		return "High-Entropy"
	}
}

// HasTradeKeyword reports whether text names a trade action (used by the
// Orchestrator's finalize step to decide on [ACTION_REQUIRED:TRADE_APPROVAL]).
func HasTradeKeyword(text string) bool {
	return tradeKeywords.MatchString(strings.ToLower(text))
}

// HasBuyKeyword reports whether text proposes a buy-side action specifically
// (as opposed to any trade action), used to gate the wash-sale check which
// only applies to buys.
func HasBuyKeyword(text string) bool {
	return buyKeywords.MatchString(strings.ToLower(text))
}
