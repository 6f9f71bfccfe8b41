package quant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphacouncil/core/internal/fabricator"
	"github.com/alphacouncil/core/internal/money"
)

func makeBars(closes []float64) []fabricator.Bar {
	bars := make([]fabricator.Bar, len(closes))
	for i, c := range closes {
		m := money.FromFloat(c)
		bars[i] = fabricator.Bar{
			Open:  m,
			High:  money.FromFloat(c + 1),
			Low:   money.FromFloat(c - 1),
			Close: m,
		}
	}
	return bars
}

func TestAnalyze_RequiresMinBars(t *testing.T) {
	a := New()
	_, err := a.Analyze(context.Background(), map[string]any{
		"ticker": "AAPL",
		"bars":   makeBars([]float64{100, 101, 102}),
	})
	require.Error(t, err)
}

func TestAnalyze_SupportResistanceBoundsPrice(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	a := New()
	out, err := a.Analyze(context.Background(), map[string]any{
		"ticker": "AAPL",
		"bars":   makeBars(closes),
	})
	require.NoError(t, err)

	support := out["support"].(money.Money)
	resistance := out["resistance"].(money.Money)
	assert.True(t, support.LessThanOrEqual(resistance))
	current := money.FromFloat(closes[len(closes)-1])
	assert.True(t, support.LessThanOrEqual(current))
	assert.True(t, current.LessThanOrEqual(resistance))
	assert.Contains(t, []string{"Buy", "Sell", "Hold", "Neutral"}, out["signal"])
}

func TestComputeRSI_AllGainsIsHundred(t *testing.T) {
	closes := make([]money.Money, 20)
	for i := range closes {
		closes[i] = money.FromFloat(100 + float64(i))
	}
	rsi := computeRSI(closes, 14)
	assert.Equal(t, 100.0, rsi)
}

func TestComputeBollinger_MiddleIsMean(t *testing.T) {
	closes := []money.Money{
		money.FromFloat(10), money.FromFloat(20), money.FromFloat(30),
	}
	upper, middle, lower := computeBollinger(closes, 3)
	assert.InDelta(t, 20.0, middle, 0.001)
	assert.True(t, upper > middle)
	assert.True(t, lower < middle)
}
