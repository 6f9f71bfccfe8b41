// Package social implements the SocialAgent specialist: an
// envelope-conforming leaf whose social-sentiment algorithm is an external
// collaborator's concern. This package only normalizes the provider payload
// into the sentiment_label shape the orchestrator's contradiction detection
// reads.
package social

import (
	"context"

	"github.com/alphacouncil/core/internal/fabricator"
)

// Provider is the external social-sentiment collaborator.
type Provider interface {
	Fetch(ctx context.Context, ticker string) (*fabricator.SocialData, error)
}

// Agent is the SocialAgent specialist.
type Agent struct {
	provider Provider
}

func New(provider Provider) *Agent { return &Agent{provider: provider} }

func (a *Agent) Name() string { return "social" }

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
	if _, ok := out["sentiment_label"]; !ok {
		if score, ok := scoreOf(data.Payload); ok {
			out["sentiment_label"] = labelFor(score)
		}
	}
	return out, nil
}

// FromMap reverses Analyze's flattened map shape so an envelope-merged
// result can be restored into a *fabricator.SocialData.
func FromMap(m map[string]any) *fabricator.SocialData {
	data := &fabricator.SocialData{Payload: map[string]any{}}
	for k, v := range m {
		if k == "ticker" {
			data.Ticker, _ = v.(string)
			continue
		}
		data.Payload[k] = v
	}
	return data
}

func scoreOf(payload map[string]any) (float64, bool) {
	v, ok := payload["sentiment_score"]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func labelFor(score float64) string {
	switch {
	case score > 0.15:
		return "Bullish"
	case score < -0.15:
		return "Bearish"
	default:
		return "Neutral"
	}
}
