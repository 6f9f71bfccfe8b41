package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToolExecutor struct {
	results map[string]string
}

func (f fakeToolExecutor) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	return f.results[name], nil
}

func TestRunToolLoop_SensitiveToolIsIntercepted(t *testing.T) {
	draft := `I recommend buying. [TOOL:place_market_order({"ticker":"AAPL","qty":10})]`

	out := RunToolLoop(context.Background(), nil, fakeToolExecutor{}, draft, "corr-1")

	assert.Contains(t, out, "[ACTION_REQUIRED:place_market_order]")
	assert.NotContains(t, out, "[TOOL:place_market_order")
}

func TestRunToolLoop_NonSensitiveToolExecutes(t *testing.T) {
	draft := `Here is the latest quote: [TOOL:get_quote({"ticker":"AAPL"})]`
	executor := fakeToolExecutor{results: map[string]string{"get_quote": "AAPL is $152.34"}}

	out := RunToolLoop(context.Background(), nil, executor, draft, "corr-1")

	assert.Contains(t, out, "AAPL is $152.34")
	assert.NotContains(t, out, "[TOOL:get_quote")
}

func TestRunToolLoop_NeverLeavesEvidenceOfExecutingSensitiveTools(t *testing.T) {
	// P3: sensitive tool calls never reach the executor.
	draft := `[TOOL:cancel_order({"order_id":"1"})]`
	executor := fakeToolExecutor{results: map[string]string{"cancel_order": "CANCELLED"}}

	out := RunToolLoop(context.Background(), nil, executor, draft, "corr-1")

	assert.NotContains(t, out, "CANCELLED")
	assert.Contains(t, out, "[ACTION_REQUIRED:cancel_order]")
}

func TestRunToolLoop_NoMarkersReturnsUnchanged(t *testing.T) {
	draft := "Nothing to see here."

	out := RunToolLoop(context.Background(), nil, fakeToolExecutor{}, draft, "corr-1")

	assert.Equal(t, draft, out)
}

func TestExtractChainOfThought_StripsAndReturnsReasoning(t *testing.T) {
	raw := "<thinking>internal deliberation here</thinking>The answer is buy."

	visible, reasoning := ExtractChainOfThought(raw)

	assert.Equal(t, "The answer is buy.", visible)
	assert.Equal(t, "internal deliberation here", reasoning)
	assert.NotContains(t, visible, "internal deliberation")
}

func TestExtractChainOfThought_NoMarkerLeavesTextUntouched(t *testing.T) {
	raw := "Just a plain answer."

	visible, reasoning := ExtractChainOfThought(raw)

	require.Equal(t, raw, visible)
	assert.Empty(t, reasoning)
}
