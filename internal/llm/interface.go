package llm

import "context"

// LLMClient is the role-agnostic surface RouterAgent, ReasoningAgent,
// RiskCriticAgent, and CodeRepairAgent (agents.go) depend on, rather than the
// concrete *Client, so provider fallback for the router/reasoning/risk model
// slots goes through the shared internal/resilience.FallbackChain instead of
// a second, LLM-specific fallback implementation.
type LLMClient interface {
	// Complete sends a chat completion request with the given messages
	Complete(ctx context.Context, messages []ChatMessage) (*ChatResponse, error)

	// CompleteWithRetry attempts completion with retries on transient failures
	CompleteWithRetry(ctx context.Context, messages []ChatMessage, maxRetries int) (*ChatResponse, error)

	// CompleteWithSystem is a convenience method for system + user prompts
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ParseJSONResponse extracts and parses JSON from LLM response content
	ParseJSONResponse(content string, target interface{}) error
}

// Ensure Client implements LLMClient interface
var _ LLMClient = (*Client)(nil)
