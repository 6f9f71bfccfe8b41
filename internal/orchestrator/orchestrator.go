package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/alphacouncil/core/internal/bus"
	"github.com/alphacouncil/core/internal/envelope"
	"github.com/alphacouncil/core/internal/fabricator"
	"github.com/alphacouncil/core/internal/governance"
	"github.com/alphacouncil/core/internal/money"
	"github.com/alphacouncil/core/internal/normalize"
	"github.com/alphacouncil/core/internal/obslog"
	"github.com/alphacouncil/core/internal/risk"
	"github.com/alphacouncil/core/internal/specialists/portfolio"
	"github.com/alphacouncil/core/internal/specialists/research"
	"github.com/alphacouncil/core/internal/specialists/social"
	"github.com/alphacouncil/core/internal/specialists/tlh"
	"github.com/alphacouncil/core/internal/specialists/whale"
)

// ReasoningModel produces the draft recommendation and the debate loop's
// rebuttal text. Implementations own prompt assembly.
type ReasoningModel interface {
	Draft(ctx context.Context, query string, mc *fabricator.MarketContext, historicalAlpha map[string]any) (string, error)
	Rebut(ctx context.Context, proposedText, refutation string) (string, error)
}

// AlphaLookup supplies historical alpha metrics for a ticker.
type AlphaLookup interface {
	Lookup(ctx context.Context, ticker string) map[string]any
}

// AttributionScheduler schedules the post-hoc alpha-audit job.
type AttributionScheduler interface {
	Schedule(correlationID string, delay time.Duration)
}

// Orchestrator runs the full request lifecycle.
type Orchestrator struct {
	Bus        *bus.Bus
	Governance *governance.Table
	Fabricator *fabricator.Fabricator
	Envelopes  map[string]*envelope.Envelope // keyed by specialist tag
	Recovery   Recovery

	Router      Router
	Reasoning   ReasoningModel
	Critic      risk.Critic
	RiskGate    risk.Gate
	ToolExec    ToolExecutor
	Alpha       AlphaLookup
	Attribution AttributionScheduler
}

const attributionDelay = 2 * time.Second

// Run executes the full Orchestrator lifecycle.
func (o *Orchestrator) Run(ctx context.Context, req Request) FinalAnswer {
	req = normalizeRequest(req)
	log := obslog.WithCorrelation(obslog.New("orchestrator"), req.CorrelationID)
	start := time.Now()

	// a. Setup
	o.emit("agent_started", "Orchestrator", req.CorrelationID, map[string]any{})

	// b. Route
	intent := ClassifyIntent(ctx, o.Router, req.Query)
	o.emit("intent_classified", "Orchestrator", req.CorrelationID, map[string]any{"type": string(intent.Type), "reason": intent.Reason})

	if intent.Type == IntentEducational {
		return o.finalizeEducational(req, intent)
	}

	// d. Resolve ticker from history (before fabrication, so fabrication
	// fetches for the resolved ticker).
	ticker := req.Ticker
	if ticker == "" {
		ticker = intent.PrimaryTicker
	}
	if ticker == "" {
		ticker = ResolveTickerFromHistory(req.History)
	} else {
		ticker = normalize.Ticker(ticker)
	}

	// c. Fabricate context
	var historicalAlpha map[string]any
	if o.Alpha != nil {
		historicalAlpha = o.Alpha.Lookup(ctx, ticker)
	}
	mc := o.Fabricator.Build(ctx, string(intent.Type), ticker, string(req.AccountScope), map[string]any{
		"historical_alpha":   historicalAlpha,
		"recent_history":     lastN(req.History, 5),
		"recent_trades":      req.RecentTrades,
		"position_opened_at": req.PositionOpenedAt,
	})
	o.emit("context_fabricated", "Orchestrator", req.CorrelationID, map[string]any{"ticker": ticker})

	// e/f. Swarm fan-out with recovery ladder
	o.emit("swarm_started", "Orchestrator", req.CorrelationID, map[string]any{"needs": intent.Needs})
	swarmEnvelopes, swarmInputs := o.selectSpecialists(intent, ticker, string(req.AccountScope), mc)
	results := RunSwarm(ctx, swarmEnvelopes, swarmInputs, o.Recovery, req.CorrelationID)
	mergeResults(mc, results)

	if mc.Portfolio != nil {
		if opened, ok := mc.UserContext["position_opened_at"].(map[string]time.Time); ok && len(opened) > 0 {
			if candidates := tlh.Scan(mc.Portfolio.Positions, opened, time.Now(), 0); len(candidates) > 0 {
				mc.UserContext["tlh_candidates"] = candidates
			}
		}
	}

	// g. Contradiction detection
	contradictions := DetectContradictions(
		stringField(mc.Quant, "signal"),
		stringField(structOf(mc.Research), "sentiment_label"),
		stringField(mc.Forecast, "trend"),
		stringField(structOf(mc.Whale), "impact"),
		stringField(structOf(mc.Social), "sentiment_label"),
	)
	mc.UserContext["contradictions"] = contradictions

	// h. Reason (draft)
	if o.Reasoning == nil {
		return o.singleLineErrorAnswer(req, mc)
	}
	rawDraft, err := o.Reasoning.Draft(ctx, req.Query, mc, historicalAlpha)
	if err != nil {
		log.Error().Err(err).Msg("reasoning model call failed")
		return o.singleLineErrorAnswer(req, mc)
	}
	visible, cot := ExtractChainOfThought(rawDraft)
	mc.Reasoning = cot
	draft := visible

	// i. Tool loop
	o.emit("reasoning_started", "Orchestrator", req.CorrelationID, map[string]any{})
	if o.ToolExec != nil {
		draft = RunToolLoop(ctx, o.Bus, o.ToolExec, draft, req.CorrelationID)
	}

	// j. Critique (adversarial debate)
	o.emit("risk_review_started", "Orchestrator", req.CorrelationID, map[string]any{})
	finalVerdict, trace := o.runDebate(ctx, mc, draft)

	// k. Finalize
	score := risk.Score(trace, finalVerdict.Status)
	label := risk.Label(score)
	content := fmt.Sprintf("[ACE: %.2f %s]\n%s", score, label, draft)
	if finalVerdict.Status == risk.Flagged || finalVerdict.Status == risk.Blocked {
		// The deterministic gates write their reason into ComplianceNotes,
		// the critic LLM into RiskAssessment; surface both.
		warning := finalVerdict.RiskAssessment
		if finalVerdict.ComplianceNotes != "" {
			if warning != "" {
				warning += "; "
			}
			warning += finalVerdict.ComplianceNotes
		}
		content += "\n\n⚠️ Warning: " + warning
		if risk.HasTradeKeyword(draft) {
			content += "\n[ACTION_REQUIRED:TRADE_APPROVAL]"
		}
	}

	o.emit("agent_complete", "Orchestrator", req.CorrelationID, map[string]any{"latency_ms": time.Since(start).Milliseconds()})

	if o.Attribution != nil {
		o.Attribution.Schedule(req.CorrelationID, attributionDelay)
	}

	return FinalAnswer{
		Content:       content,
		Context:       marketContextToMap(mc),
		CorrelationID: req.CorrelationID,
	}
}

func (o *Orchestrator) runDebate(ctx context.Context, mc *fabricator.MarketContext, draft string) (risk.Verdict, risk.DebateTrace) {
	if o.Critic == nil {
		return risk.Verdict{Status: risk.Approved}, nil
	}

	portfolioValue := money.Zero
	cash := money.Zero
	if mc.Portfolio != nil {
		portfolioValue = mc.Portfolio.TotalValue
		cash = mc.Portfolio.CashFree
	}

	// Implied position value is the input the position-size gate needs
	// (not the excluded order-execution concern): parse the share count the
	// draft proposes next to the ticker and price it at the fabricated
	// current price. Falls back to zero (no breach detectable) when the
	// draft names no quantity or no current price is available.
	impliedPosition := money.Zero
	if mc.Price != nil && !mc.Price.CurrentPrice.IsZero() {
		if qty, ok := ParseProposedQuantity(draft, mc.Ticker); ok {
			impliedPosition = money.FromFloat(qty).Mul(mc.Price.CurrentPrice)
		}
	}

	rebutter := func(ctx context.Context, proposedText, refutation string) (string, error) {
		if o.Reasoning == nil {
			return proposedText, fmt.Errorf("no reasoning model configured for rebuttal")
		}
		return o.Reasoning.Rebut(ctx, proposedText, refutation)
	}

	recentTrades, _ := mc.UserContext["recent_trades"].([]risk.RecentTrade)

	return risk.RunDebate(ctx, o.Critic, rebutter, portfolioValue, cash, mc.Ticker, draft, o.RiskGate, impliedPosition, recentTrades, risk.HasBuyKeyword(draft))
}

func (o *Orchestrator) selectSpecialists(intent Intent, ticker, accountScope string, mc *fabricator.MarketContext) (map[string]*envelope.Envelope, map[string]map[string]any) {
	envelopes := make(map[string]*envelope.Envelope)
	inputs := make(map[string]map[string]any)

	for _, tag := range intent.Needs {
		env, ok := o.Envelopes[tag]
		if !ok {
			continue
		}
		if !specialistPreconditionMet(tag, mc) {
			mc.MarkExecuted(tag, true)
			continue
		}
		envelopes[tag] = env
		inputs[tag] = specialistInput(tag, ticker, accountScope, mc)
	}

	return envelopes, inputs
}

// specialistInput builds the tag-specific Analyze input map; each
// specialist's call contract is its own concern.
func specialistInput(tag, ticker, accountScope string, mc *fabricator.MarketContext) map[string]any {
	switch tag {
	case "quant":
		return map[string]any{"ticker": ticker, "bars": mc.Price.Series}
	case "forecast":
		return map[string]any{"ticker": ticker, "bars": mc.Price.Series, "days": 30}
	case "portfolio":
		return map[string]any{"account_scope": accountScope}
	case "goal":
		input := map[string]any{"ticker": ticker, "portfolio": mc.Portfolio}
		if tv, ok := mc.UserContext["target_value"].(float64); ok {
			input["target_value"] = tv
		}
		if mc2, ok := mc.UserContext["monthly_contribution"].(float64); ok {
			input["monthly_contribution"] = mc2
		}
		if ar, ok := mc.UserContext["annual_return_pct"].(float64); ok {
			input["annual_return_pct"] = ar
		}
		return input
	default:
		return map[string]any{"ticker": ticker}
	}
}

// specialistPreconditionMet checks the field-level precondition for a tag
// (e.g. quant requires bars in context).
func specialistPreconditionMet(tag string, mc *fabricator.MarketContext) bool {
	switch tag {
	case "quant", "forecast":
		return mc.Price != nil && len(mc.Price.Series) > 0
	default:
		return true
	}
}

func mergeResults(mc *fabricator.MarketContext, results []SwarmResult) {
	for _, r := range results {
		if r.Response.Telemetry != nil {
			mc.Telemetry = append(mc.Telemetry, *r.Response.Telemetry)
		}
		if !r.Response.Success {
			mc.MarkExecuted(r.Tag, true)
			continue
		}
		mc.MarkExecuted(r.Tag, false)
		switch r.Tag {
		case "quant":
			mc.Quant = r.Response.Data
		case "forecast":
			mc.Forecast = r.Response.Data
		case "goal":
			mc.Goal = r.Response.Data
		case "portfolio":
			mc.Portfolio = portfolio.FromMap(r.Response.Data)
		case "research":
			mc.Research = research.FromMap(r.Response.Data)
		case "social":
			mc.Social = social.FromMap(r.Response.Data)
		case "whale":
			mc.Whale = whale.FromMap(r.Response.Data)
		}
	}
}

func (o *Orchestrator) finalizeEducational(req Request, intent Intent) FinalAnswer {
	o.emit("agent_complete", "Orchestrator", req.CorrelationID, map[string]any{"intent": string(intent.Type)})
	return FinalAnswer{
		Content:       "[ACE: 1.00 Battle-Tested]\nThis is an educational query; no specialist fan-out or risk review applies.",
		CorrelationID: req.CorrelationID,
		Context:       map[string]any{"intent": string(intent.Type)},
	}
}

func (o *Orchestrator) singleLineErrorAnswer(req Request, mc *fabricator.MarketContext) FinalAnswer {
	return FinalAnswer{
		Content:       "No reasoning model is configured.",
		CorrelationID: req.CorrelationID,
		Context:       marketContextToMap(mc),
	}
}

func (o *Orchestrator) emit(subject, sender, correlationID string, payload map[string]any) {
	if o.Bus == nil {
		return
	}
	msg := bus.NewMessage(sender, bus.Broadcast, subject, payload, correlationID)
	if o.Governance != nil {
		_ = o.Governance.SecureDispatch(msg)
		return
	}
	_ = o.Bus.Send(msg)
}

func lastN(history []HistoryMessage, n int) []HistoryMessage {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func structOf(v any) map[string]any {
	switch t := v.(type) {
	case *fabricator.ResearchData:
		if t == nil {
			return nil
		}
		return map[string]any{"sentiment_label": t.SentimentLabel}
	case *fabricator.SocialData:
		if t == nil {
			return nil
		}
		return t.Payload
	case *fabricator.WhaleData:
		if t == nil {
			return nil
		}
		return t.Payload
	default:
		return nil
	}
}

func marketContextToMap(mc *fabricator.MarketContext) map[string]any {
	return map[string]any{
		"intent":           mc.Intent,
		"ticker":           mc.Ticker,
		"agents_executed":  mc.AgentsExecuted,
		"agents_failed":    mc.AgentsFailed,
		"total_latency_ms": mc.TotalLatencyMs,
		"reasoning":        mc.Reasoning,
		"user_context":     mc.UserContext,
	}
}
