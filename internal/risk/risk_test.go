package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphacouncil/core/internal/money"
)

func TestGate_PositionSizeOverLimitEscalatesToFlagged(t *testing.T) {
	g := DefaultGate()
	v := Verdict{Status: Approved}

	out := g.Apply(v, "hold AAPL", money.MustFromString("10000"), money.MustFromString("600"), nil, "AAPL", false)
	assert.Equal(t, Flagged, out.Status)
	assert.Contains(t, out.ComplianceNotes, "exceeds portfolio limit")
}

func TestGate_PositionSizeWithinLimitLeavesStatusUnchanged(t *testing.T) {
	g := DefaultGate()
	v := Verdict{Status: Approved}

	out := g.Apply(v, "hold AAPL", money.MustFromString("10000"), money.MustFromString("400"), nil, "AAPL", false)
	assert.Equal(t, Approved, out.Status)
	assert.Empty(t, out.ComplianceNotes)
}

func TestGate_TradeKeywordForcesHumanApproval(t *testing.T) {
	g := DefaultGate()
	v := Verdict{Status: Approved}

	out := g.Apply(v, "I recommend you buy 10 shares of AAPL", money.Zero, money.Zero, nil, "AAPL", true)
	assert.True(t, out.RequiresHumanApproval)
}

func TestGate_NonTradeTextDoesNotForceHumanApproval(t *testing.T) {
	g := DefaultGate()
	v := Verdict{Status: Approved}

	out := g.Apply(v, "AAPL looks fundamentally strong this quarter", money.Zero, money.Zero, nil, "AAPL", false)
	assert.False(t, out.RequiresHumanApproval)
}

func TestGate_WashSaleBlocksBuyAfterRecentLossSale(t *testing.T) {
	g := DefaultGate()
	v := Verdict{Status: Approved}
	trades := []RecentTrade{
		{Ticker: "AAPL", Side: "sell", Realized: money.MustFromString("-50"), DaysAgo: 10},
	}

	out := g.Apply(v, "buy AAPL", money.Zero, money.Zero, trades, "AAPL", true)
	assert.Equal(t, Blocked, out.Status)
	assert.Contains(t, out.ComplianceNotes, "wash-sale")
}

func TestGate_WashSaleDoesNotApplyToSellProposals(t *testing.T) {
	g := DefaultGate()
	v := Verdict{Status: Approved}
	trades := []RecentTrade{
		{Ticker: "AAPL", Side: "sell", Realized: money.MustFromString("-50"), DaysAgo: 10},
	}

	out := g.Apply(v, "sell AAPL", money.Zero, money.Zero, trades, "AAPL", false)
	assert.Equal(t, Approved, out.Status)
}

func TestGate_WashSaleIgnoresProfitableRecentSale(t *testing.T) {
	g := DefaultGate()
	v := Verdict{Status: Approved}
	trades := []RecentTrade{
		{Ticker: "AAPL", Side: "sell", Realized: money.MustFromString("50"), DaysAgo: 10},
	}

	out := g.Apply(v, "buy AAPL", money.Zero, money.Zero, trades, "AAPL", true)
	assert.Equal(t, Approved, out.Status)
}

func TestGate_WashSaleIgnoresSaleOutsideWindow(t *testing.T) {
	g := DefaultGate()
	v := Verdict{Status: Approved}
	trades := []RecentTrade{
		{Ticker: "AAPL", Side: "sell", Realized: money.MustFromString("-50"), DaysAgo: 45},
	}

	out := g.Apply(v, "buy AAPL", money.Zero, money.Zero, trades, "AAPL", true)
	assert.Equal(t, Approved, out.Status)
}

func TestGate_EscalationNeverDowngradesStatus(t *testing.T) {
	g := DefaultGate()
	v := Verdict{Status: Blocked, ComplianceNotes: "already blocked"}

	out := g.Apply(v, "hold AAPL", money.MustFromString("10000"), money.MustFromString("600"), nil, "AAPL", false)
	assert.Equal(t, Blocked, out.Status)
	assert.Contains(t, out.ComplianceNotes, "already blocked")
	assert.Contains(t, out.ComplianceNotes, "exceeds portfolio limit")
}

type stubCritic struct {
	verdicts []Verdict
	errs     []error
	calls    int
}

func (c *stubCritic) Review(ctx context.Context, portfolioValue, cash money.Money, ticker, proposedText string) (Verdict, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return Verdict{}, c.errs[i]
	}
	return c.verdicts[i], nil
}

func TestRunDebate_ApprovedOnFirstTurnSkipsRebuttal(t *testing.T) {
	critic := &stubCritic{verdicts: []Verdict{{Status: Approved, Confidence: 0.9}}}
	rebutCalled := false
	rebut := func(ctx context.Context, proposedText, refutation string) (string, error) {
		rebutCalled = true
		return "", nil
	}

	v, trace := RunDebate(context.Background(), critic, rebut, money.Zero, money.Zero, "AAPL", "hold", DefaultGate(), money.Zero, nil, false)
	assert.Equal(t, Approved, v.Status)
	assert.Len(t, trace, 1)
	assert.False(t, rebutCalled)
}

func TestRunDebate_FlaggedTriggersRebuttalAndSecondReview(t *testing.T) {
	critic := &stubCritic{verdicts: []Verdict{
		{Status: Flagged, DebateRefutation: "too aggressive"},
		{Status: Approved, DebateRefutation: "addressed by reducing size"},
	}}
	rebut := func(ctx context.Context, proposedText, refutation string) (string, error) {
		return "revised: " + proposedText, nil
	}

	v, trace := RunDebate(context.Background(), critic, rebut, money.Zero, money.Zero, "AAPL", "buy 100 AAPL", DefaultGate(), money.Zero, nil, true)
	assert.Equal(t, Approved, v.Status)
	require.Len(t, trace, 2)
	assert.Equal(t, 1, trace[0].Turn)
	assert.Equal(t, 2, trace[1].Turn)
}

func TestRunDebate_CriticErrorDefaultsToFlagged(t *testing.T) {
	critic := &stubCritic{errs: []error{errors.New("llm unavailable")}, verdicts: []Verdict{{}}}
	rebut := func(ctx context.Context, proposedText, refutation string) (string, error) { return proposedText, nil }

	v, trace := RunDebate(context.Background(), critic, rebut, money.Zero, money.Zero, "AAPL", "hold", DefaultGate(), money.Zero, nil, false)
	assert.Equal(t, Flagged, v.Status)
	assert.True(t, v.RequiresHumanApproval)
	require.Len(t, trace, 1)
}

func TestRunDebate_RebuttalGenerationFailureKeepsOriginalVerdict(t *testing.T) {
	critic := &stubCritic{verdicts: []Verdict{{Status: Flagged, DebateRefutation: "risky"}}}
	rebut := func(ctx context.Context, proposedText, refutation string) (string, error) {
		return "", errors.New("rebuttal model down")
	}

	v, trace := RunDebate(context.Background(), critic, rebut, money.Zero, money.Zero, "AAPL", "buy AAPL", DefaultGate(), money.Zero, nil, true)
	assert.Equal(t, Flagged, v.Status)
	assert.Len(t, trace, 1)
}

func TestScore_NoRebuttalsApproved(t *testing.T) {
	assert.Equal(t, 1.0, Score(nil, Approved))
}

func TestScore_NoRebuttalsNotApproved(t *testing.T) {
	assert.Equal(t, 0.5, Score(nil, Flagged))
}

func TestScore_OneRebuttalApprovedWithResolution(t *testing.T) {
	trace := DebateTrace{
		{Turn: 1, Status: Flagged, Refutation: "too risky"},
		{Turn: 2, Status: Approved, Refutation: "resolved by trimming size"},
	}
	got := Score(trace, Approved)
	// base 1 - 0.1*1 = 0.9; final Approved has no multiplier; +0.05 for the
	// resolved turn (turn 1's refutation carries no resolution keyword).
	assert.InDelta(t, 0.95, got, 1e-9)
}

func TestScore_BlockedAppliesHeavyPenalty(t *testing.T) {
	trace := DebateTrace{{Turn: 1, Status: Blocked, Refutation: "wash-sale violation"}}
	got := Score(trace, Blocked)
	assert.InDelta(t, 0.2, got, 1e-9)
}

func TestScore_ClampsToZeroAndOne(t *testing.T) {
	trace := make(DebateTrace, 20)
	for i := range trace {
		trace[i] = DebateTurn{Turn: i + 1, Status: Blocked}
	}
	got := Score(trace, Blocked)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.LessOrEqual(t, got, 1.0)
}

func TestLabel_Thresholds(t *testing.T) {
	assert.Equal(t, "Battle-Tested", Label(1.0))
	assert.Equal(t, "Battle-Tested", Label(0.85))
	assert.Equal(t, "Verified", Label(0.84))
	assert.Equal(t, "Verified", Label(0.70))
	assert.Equal(t, "Cautionary", Label(0.69))
	assert.Equal(t, "Cautionary", Label(0.50))
	assert.Equal(t, "High-Entropy", Label(0.49))
	assert.Equal(t, "High-Entropy", Label(0.0))
}

func TestHasTradeKeyword(t *testing.T) {
	assert.True(t, HasTradeKeyword("You should buy 10 shares"))
	assert.True(t, HasTradeKeyword("Consider placing an order"))
	assert.False(t, HasTradeKeyword("AAPL has strong fundamentals"))
}

func TestHasBuyKeyword(t *testing.T) {
	assert.True(t, HasBuyKeyword("accumulate more AAPL"))
	assert.True(t, HasBuyKeyword("add to your position"))
	assert.False(t, HasBuyKeyword("you should sell AAPL"))
}
