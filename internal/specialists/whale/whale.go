// Package whale implements the WhaleAgent specialist: an
// envelope-conforming leaf whose large-holder activity algorithm is an
// external collaborator's concern. This package normalizes the provider
// payload into the impact label the orchestrator's contradiction detection
// reads.
package whale

import (
	"context"

	"github.com/alphacouncil/core/internal/fabricator"
)

// Provider is the external whale/large-holder-activity collaborator.
type Provider interface {
	Fetch(ctx context.Context, ticker string) (*fabricator.WhaleData, error)
}

// Agent is the WhaleAgent specialist.
type Agent struct {
	provider Provider
}

func New(provider Provider) *Agent { return &Agent{provider: provider} }

func (a *Agent) Name() string { return "whale" }

// Analyze expects input{"ticker": string}.
func (a *Agent) Analyze(ctx context.Context, input map[string]any) (map[string]any, error) {
	ticker, _ := input["ticker"].(string)

	data, err := a.provider.Fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}

	out := map[string]any{"ticker": data.Ticker}
	for k, v := range data.Payload {
		out[k] = v
	}
	if _, ok := out["impact"]; !ok {
		if netFlow, ok := flowOf(data.Payload); ok {
			out["impact"] = impactFor(netFlow)
		}
	}
	return out, nil
}

// FromMap reverses Analyze's flattened map shape so an envelope-merged
// result can be restored into a *fabricator.WhaleData.
func FromMap(m map[string]any) *fabricator.WhaleData {
	data := &fabricator.WhaleData{Payload: map[string]any{}}
	for k, v := range m {
		if k == "ticker" {
			data.Ticker, _ = v.(string)
			continue
		}
		data.Payload[k] = v
	}
	return data
}

func flowOf(payload map[string]any) (float64, bool) {
	v, ok := payload["net_flow"]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func impactFor(netFlow float64) string {
	switch {
	case netFlow > 0:
		return "Bullish"
	case netFlow < 0:
		return "Bearish"
	default:
		return "Neutral"
	}
}
