package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alphacouncil/core/internal/money"
)

func TestIsPenceExchange(t *testing.T) {
	assert.True(t, IsPenceExchange("LLOY.L"))
	assert.True(t, IsPenceExchange("XYZ.IL"))
	assert.False(t, IsPenceExchange("AAPL"))
}

func TestIsUKStock_PenceExchangeAlwaysUK(t *testing.T) {
	assert.True(t, IsUKStock("LLOY.L", "USD", "NASDAQ"))
}

func TestIsUKStock_GBPOnLSEIsUK(t *testing.T) {
	assert.True(t, IsUKStock("SOMETICKER", "GBP", "LSE"))
	assert.True(t, IsUKStock("SOMETICKER", "gbp", "London Stock Exchange"))
}

func TestIsUKStock_GBPOnOtherExchangeIsNotUK(t *testing.T) {
	assert.False(t, IsUKStock("SOMETICKER", "GBP", "NYSE"))
}

func TestIsUKStock_NonGBPCurrencyIsNotUK(t *testing.T) {
	assert.False(t, IsUKStock("SOMETICKER", "USD", "LSE"))
}

func TestPenceToPoundsAndBack(t *testing.T) {
	pence := money.MustFromString("15234")
	pounds := PenceToPounds(pence)
	assert.Equal(t, "152.34", pounds.String())
	assert.Equal(t, pence.String(), PoundsToPence(pounds).String())
}
