package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alphacouncil/core/internal/money"
)

func closesOf(vals ...string) []money.Money {
	out := make([]money.Money, len(vals))
	for i, v := range vals {
		out[i] = money.MustFromString(v)
	}
	return out
}

func TestValidateUnitConsistency_NoSeriesPassesThrough(t *testing.T) {
	price := money.MustFromString("152.34")
	adjusted, adj := ValidateUnitConsistency(price, nil)
	assert.Equal(t, price.String(), adjusted.String())
	assert.False(t, adj.Applied)
	assert.Equal(t, "none", adj.Factor)
}

func TestValidateUnitConsistency_ZeroPricePassesThrough(t *testing.T) {
	adjusted, adj := ValidateUnitConsistency(money.Zero, closesOf("150.00"))
	assert.True(t, adjusted.IsZero())
	assert.False(t, adj.Applied)
}

func TestValidateUnitConsistency_ConsistentUnitsNoAdjustment(t *testing.T) {
	// Series median and currentPrice both in pounds, same order of magnitude.
	price := money.MustFromString("150.00")
	adjusted, adj := ValidateUnitConsistency(price, closesOf("148.00", "150.00", "152.00"))
	assert.False(t, adj.Applied)
	assert.Equal(t, "none", adj.Factor)
	assert.Equal(t, price.String(), adjusted.String())
}

func TestValidateUnitConsistency_SeriesInPenceScalesPriceUp(t *testing.T) {
	// Series median ~150 (pence), currentPrice given as 1.50 (pounds) — the
	// same real price expressed in the wrong unit; currentPrice must scale up
	// to match the series.
	price := money.MustFromString("1.50")
	adjusted, adj := ValidateUnitConsistency(price, closesOf("148.00", "150.00", "152.00"))
	assert.True(t, adj.Applied)
	assert.Equal(t, "multiply_100", adj.Factor)
	assert.Equal(t, "150.00", adjusted.String())
}

func TestValidateUnitConsistency_SeriesInPoundsScalesPriceDown(t *testing.T) {
	// Series median ~1.50 (pounds), currentPrice given as 150 (pence).
	price := money.MustFromString("150.00")
	adjusted, adj := ValidateUnitConsistency(price, closesOf("1.48", "1.50", "1.52"))
	assert.True(t, adj.Applied)
	assert.Equal(t, "divide_100", adj.Factor)
	assert.Equal(t, "1.50", adjusted.String())
}

func TestValidateUnitConsistency_OutOfRangeRatioLeftUntouched(t *testing.T) {
	// Ratio 2x is neither the pence nor the pounds bucket.
	price := money.MustFromString("75.00")
	adjusted, adj := ValidateUnitConsistency(price, closesOf("148.00", "150.00", "152.00"))
	assert.False(t, adj.Applied)
	assert.Equal(t, price.String(), adjusted.String())
}
