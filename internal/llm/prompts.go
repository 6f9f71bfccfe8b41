package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alphacouncil/core/internal/fabricator"
)

// PromptBuilder builds prompts for one of the three configured model roles.
type PromptBuilder struct {
	role AgentRole
}

func NewPromptBuilder(role AgentRole) *PromptBuilder {
	return &PromptBuilder{role: role}
}

// GetSystemPrompt returns the system prompt for the builder's role.
func (pb *PromptBuilder) GetSystemPrompt() string {
	switch pb.role {
	case RoleRouter:
		return routerSystemPrompt
	case RoleReasoning:
		return reasoningSystemPrompt
	case RoleRiskCritic:
		return riskCriticSystemPrompt
	default:
		return defaultSystemPrompt
	}
}

// BuildRouterPrompt asks the router model to classify a sanitized query into
// an Intent.
func (pb *PromptBuilder) BuildRouterPrompt(sanitizedQuery string) string {
	return fmt.Sprintf(`Classify the following user query.

Query: %q

Respond ONLY with a JSON object:
{
  "type": "price_check" | "market_analysis" | "portfolio_query" | "forecast_request" | "goal_planning" | "educational",
  "primary_ticker": "the ticker symbol the query is about, or empty string",
  "reason": "one short sentence explaining the classification",
  "params": {}
}`, sanitizedQuery)
}

// BuildDraftPrompt asks the reasoning model to produce the initial
// recommendation text from the fabricated context.
func (pb *PromptBuilder) BuildDraftPrompt(query string, mc *fabricator.MarketContext, historicalAlpha map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User query: %s\n\n", query)
	fmt.Fprintf(&b, "Intent: %s\n", mc.Intent)
	if mc.Ticker != "" {
		fmt.Fprintf(&b, "Ticker: %s\n", mc.Ticker)
	}
	b.WriteString("\nMarket context:\n")
	b.WriteString(FormatContextAsJSON(map[string]any{
		"price":     mc.Price,
		"quant":     mc.Quant,
		"forecast":  mc.Forecast,
		"portfolio": mc.Portfolio,
		"research":  mc.Research,
		"social":    mc.Social,
		"whale":     mc.Whale,
		"goal":      mc.Goal,
	}))
	if len(historicalAlpha) > 0 {
		b.WriteString("\nHistorical alpha for this ticker:\n")
		b.WriteString(FormatContextAsJSON(historicalAlpha))
	}
	b.WriteString(`

Write the recommendation in prose, citing the specific signals above. If a
tool call is needed, emit it inline as [TOOL:name({"arg":"value"})]. You may
optionally prefix your reply with a <thinking>...</thinking> block holding
your chain of thought; only the text after it is shown to the user.`)
	return b.String()
}

// BuildRebuttalPrompt asks the reasoning model to revise its draft in light
// of a single Critic refutation.
func (pb *PromptBuilder) BuildRebuttalPrompt(proposedText, refutation string) string {
	return fmt.Sprintf(`Your prior recommendation was challenged by the risk reviewer.

Your recommendation:
%s

Risk reviewer's refutation:
%s

Revise your recommendation to address the refutation, or explain why it does
not apply. Keep the same format as your original recommendation.`, proposedText, refutation)
}

// BuildRiskCriticPrompt asks the risk model to review a proposed
// recommendation against portfolio state.
func (pb *PromptBuilder) BuildRiskCriticPrompt(portfolioValue, cash, ticker, proposedText string) string {
	return fmt.Sprintf(`Review the following recommendation for compliance and risk concerns.

Ticker: %s
Portfolio value: %s
Free cash: %s

Recommendation:
%s

Respond ONLY with a JSON object:
{
  "status": "Approved" | "Flagged" | "Blocked",
  "confidence": 0.0-1.0,
  "risk_assessment": "explanation of risk concerns, if any",
  "compliance_notes": "explanation of compliance concerns, if any",
  "debate_refutation": "one concrete refutation the recommendation must address, empty if Approved",
  "requires_human_approval": true | false
}`, ticker, portfolioValue, cash, proposedText)
}

// FormatContextAsJSON formats context as JSON for structured prompts.
func FormatContextAsJSON(data interface{}) string {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}

const routerSystemPrompt = `You are the routing model for a multi-agent financial decision support system.

Your only job is to classify a user's query into one of a fixed set of
intent types and, if relevant, extract the primary ticker symbol it
concerns.

Respond ONLY with valid JSON in the specified format. Do not include
explanatory text outside the JSON.`

const reasoningSystemPrompt = `You are the reasoning model for a multi-agent financial decision support
system.

You are given the outputs of several specialist agents (quantitative
signals, forecasts, research sentiment, whale and social activity,
portfolio state) and must synthesize them into a single recommendation
in prose, grounded in the specific data provided.

Guidelines:
- Cite the specific signals that inform your recommendation.
- Acknowledge contradictions between specialists rather than ignoring them.
- This system provides decision support, not investment advice; say so
  when a recommendation implies a trade.
- Be willing to revise your recommendation when challenged with a valid
  risk concern.`

const riskCriticSystemPrompt = `You are the risk and compliance critic for a multi-agent financial decision
support system.

Your role is to review a proposed recommendation before it reaches the
user, checking for position-size and wash-sale concerns, overconfident or
unsupported claims, and any language that crosses from decision support
into investment advice.

Guidelines:
- Be conservative: when in doubt, flag rather than approve.
- Give one concrete, specific refutation when blocking or flagging, not a
  general disclaimer.
- Respond ONLY with valid JSON in the specified format.`

const defaultSystemPrompt = `You are a model in a multi-agent financial decision support system.

Respond ONLY with valid JSON in the specified format. Do not include
explanatory text outside the JSON.`
