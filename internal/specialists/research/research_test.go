package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphacouncil/core/internal/fabricator"
)

type stubProvider struct {
	data *fabricator.ResearchData
	err  error
}

func (s *stubProvider) Fetch(_ context.Context, _ string) (*fabricator.ResearchData, error) {
	return s.data, s.err
}

func TestAnalyze_DerivesLabelWhenProviderOmitsIt(t *testing.T) {
	a := New(&stubProvider{data: &fabricator.ResearchData{
		Ticker:         "AAPL",
		SentimentScore: 0.4,
	}})
	out, err := a.Analyze(context.Background(), map[string]any{"ticker": "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "Bullish", out["sentiment_label"])
}

func TestAnalyze_RespectsProviderSuppliedLabel(t *testing.T) {
	a := New(&stubProvider{data: &fabricator.ResearchData{
		Ticker:         "AAPL",
		SentimentScore: 0.4,
		SentimentLabel: "Neutral",
	}})
	out, err := a.Analyze(context.Background(), map[string]any{"ticker": "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "Neutral", out["sentiment_label"])
}

func TestLabelFor_Buckets(t *testing.T) {
	assert.Equal(t, "Bullish", labelFor(0.5))
	assert.Equal(t, "Bearish", labelFor(-0.5))
	assert.Equal(t, "Neutral", labelFor(0.0))
}
