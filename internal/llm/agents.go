package llm

import (
	"context"
	"fmt"

	"github.com/alphacouncil/core/internal/fabricator"
	"github.com/alphacouncil/core/internal/money"
	"github.com/alphacouncil/core/internal/risk"
)

// CodeRepairAgent implements orchestrator.CodeRepair over an LLMClient,
// asking the reasoning model for a restricted sandbox.Eval expression that
// repairs a failed specialist call's input.
type CodeRepairAgent struct {
	Client LLMClient
}

func NewCodeRepairAgent(c LLMClient) *CodeRepairAgent { return &CodeRepairAgent{Client: c} }

func (a *CodeRepairAgent) Repair(ctx context.Context, specialistName string, input map[string]any, errKind string) (reasoning, code string, err error) {
	pb := NewPromptBuilder(RoleReasoning)
	prompt := fmt.Sprintf(`Specialist %q failed with error kind %q on this input:

%s

Write a small JavaScript expression, evaluated with "input" bound to the
above object, that returns a corrected input object fixing the likely
cause of the failure (e.g. a missing or malformed field). The expression
must not call any function other than built-in Math/JSON/string methods.

Respond ONLY with a JSON object:
{
  "reasoning": "one short sentence explaining the fix",
  "code": "the JavaScript expression"
}`, specialistName, errKind, FormatContextAsJSON(input))

	reply, err := a.Client.CompleteWithSystem(ctx, pb.GetSystemPrompt(), prompt)
	if err != nil {
		return "", "", fmt.Errorf("code repair call failed: %w", err)
	}

	var parsed struct {
		Reasoning string `json:"reasoning"`
		Code      string `json:"code"`
	}
	if err := a.Client.ParseJSONResponse(reply, &parsed); err != nil {
		return "", "", fmt.Errorf("code repair reply did not parse: %w", err)
	}
	return parsed.Reasoning, parsed.Code, nil
}

// RouterAgent implements orchestrator.Router over an LLMClient using the
// router role's system/user prompts.
type RouterAgent struct {
	Client LLMClient
}

func NewRouterAgent(c LLMClient) *RouterAgent { return &RouterAgent{Client: c} }

// Route asks the configured routing model to classify sanitizedQuery and
// returns its raw reply; ClassifyIntent (internal/orchestrator) owns
// parsing and the deterministic fallback on malformed output.
func (a *RouterAgent) Route(ctx context.Context, sanitizedQuery string) (string, error) {
	pb := NewPromptBuilder(RoleRouter)
	return a.Client.CompleteWithSystem(ctx, pb.GetSystemPrompt(), pb.BuildRouterPrompt(sanitizedQuery))
}

// ReasoningAgent implements orchestrator.ReasoningModel over an LLMClient
// using the reasoning role's prompts.
type ReasoningAgent struct {
	Client LLMClient
}

func NewReasoningAgent(c LLMClient) *ReasoningAgent { return &ReasoningAgent{Client: c} }

func (a *ReasoningAgent) Draft(ctx context.Context, query string, mc *fabricator.MarketContext, historicalAlpha map[string]any) (string, error) {
	pb := NewPromptBuilder(RoleReasoning)
	return a.Client.CompleteWithSystem(ctx, pb.GetSystemPrompt(), pb.BuildDraftPrompt(query, mc, historicalAlpha))
}

func (a *ReasoningAgent) Rebut(ctx context.Context, proposedText, refutation string) (string, error) {
	pb := NewPromptBuilder(RoleReasoning)
	return a.Client.CompleteWithSystem(ctx, pb.GetSystemPrompt(), pb.BuildRebuttalPrompt(proposedText, refutation))
}

// RiskCriticAgent implements risk.Critic over an LLMClient using the
// risk-critic role's "contrarian" system prompt.
type RiskCriticAgent struct {
	Client LLMClient
}

func NewRiskCriticAgent(c LLMClient) *RiskCriticAgent { return &RiskCriticAgent{Client: c} }

func (a *RiskCriticAgent) Review(ctx context.Context, portfolioValue, cash money.Money, ticker, proposedText string) (risk.Verdict, error) {
	pb := NewPromptBuilder(RoleRiskCritic)
	reply, err := a.Client.CompleteWithSystem(ctx, pb.GetSystemPrompt(),
		pb.BuildRiskCriticPrompt(portfolioValue.String(), cash.String(), ticker, proposedText))
	if err != nil {
		return risk.Verdict{}, fmt.Errorf("risk critic call failed: %w", err)
	}

	var parsed struct {
		Status                string  `json:"status"`
		Confidence            float64 `json:"confidence"`
		RiskAssessment        string  `json:"risk_assessment"`
		ComplianceNotes       string  `json:"compliance_notes"`
		DebateRefutation      string  `json:"debate_refutation"`
		RequiresHumanApproval bool    `json:"requires_human_approval"`
	}
	if err := a.Client.ParseJSONResponse(reply, &parsed); err != nil {
		return risk.Verdict{}, fmt.Errorf("risk critic reply did not parse: %w", err)
	}

	status := risk.Status(parsed.Status)
	switch status {
	case risk.Approved, risk.Flagged, risk.Blocked:
	default:
		return risk.Verdict{}, fmt.Errorf("risk critic returned unknown status %q", parsed.Status)
	}

	return risk.Verdict{
		Status:                status,
		Confidence:            parsed.Confidence,
		RiskAssessment:        parsed.RiskAssessment,
		ComplianceNotes:       parsed.ComplianceNotes,
		DebateRefutation:      parsed.DebateRefutation,
		RequiresHumanApproval: parsed.RequiresHumanApproval,
	}, nil
}
