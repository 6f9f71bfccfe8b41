// Package research implements the ResearchAgent specialist:
// an envelope-conforming leaf whose sentiment-scoring algorithm is an
// external collaborator's concern. This package aggregates whatever
// per-article sentiment the provider already attached into the ticker-level
// score and label the rest of the core consumes.
package research

import (
	"context"

	"github.com/alphacouncil/core/internal/fabricator"
)

// Provider is the external news/sentiment collaborator.
type Provider interface {
	Fetch(ctx context.Context, ticker string) (*fabricator.ResearchData, error)
}

// Agent is the ResearchAgent specialist.
type Agent struct {
	provider Provider
}

func New(provider Provider) *Agent { return &Agent{provider: provider} }

func (a *Agent) Name() string { return "research" }

// Analyze expects input{"ticker": string}.
func (a *Agent) Analyze(ctx context.Context, input map[string]any) (map[string]any, error) {
	ticker, _ := input["ticker"].(string)

	data, err := a.provider.Fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if data.SentimentLabel == "" {
		data.SentimentLabel = labelFor(data.SentimentScore)
	}

	articles := make([]map[string]any, len(data.Articles))
	for i, art := range data.Articles {
		articles[i] = map[string]any{
			"title":     art.Title,
			"source":    art.Source,
			"url":       art.URL,
			"sentiment": art.Sentiment,
			"published": art.Published,
		}
	}

	return map[string]any{
		"ticker":          data.Ticker,
		"sentiment_score": data.SentimentScore,
		"sentiment_label": data.SentimentLabel,
		"articles":        articles,
	}, nil
}

// FromMap reverses Analyze's map shape so an envelope-merged result can be
// restored into a *fabricator.ResearchData for downstream consumers
// (contradiction detection reads SentimentLabel from this restored struct).
func FromMap(m map[string]any) *fabricator.ResearchData {
	data := &fabricator.ResearchData{}
	data.Ticker, _ = m["ticker"].(string)
	data.SentimentScore, _ = m["sentiment_score"].(float64)
	data.SentimentLabel, _ = m["sentiment_label"].(string)
	for _, a := range articlesOf(m["articles"]) {
		data.Articles = append(data.Articles, fabricator.Article{
			Title:  stringOf(a["title"]),
			Source: stringOf(a["source"]),
			URL:    stringOf(a["url"]),
		})
	}
	return data
}

// articlesOf accepts either the []map[string]any Analyze returns directly
// or the []any-of-map[string]any shape a cache round-trip through
// marshal/unmarshal produces.
func articlesOf(v any) []map[string]any {
	switch raw := v.(type) {
	case []map[string]any:
		return raw
	case []any:
		out := make([]map[string]any, 0, len(raw))
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

// labelFor buckets a sentiment score in [-1,1] into the fixed label enum.
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
