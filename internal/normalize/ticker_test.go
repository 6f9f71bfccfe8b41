package normalize

import "testing"

import "github.com/stretchr/testify/assert"

func TestTicker_UppercasesAndTrimsDollarSign(t *testing.T) {
	assert.Equal(t, "AAPL", Ticker("$aapl"))
	assert.Equal(t, "AAPL", Ticker(" aapl "))
}

func TestTicker_AlreadyDottedPassesThroughUnchanged(t *testing.T) {
	assert.Equal(t, "LLOY.L", Ticker("LLOY.L"))
}

func TestTicker_AliasTableResolvesT212Symbol(t *testing.T) {
	assert.Equal(t, "LLOY.L", Ticker("LLOY1"))
	assert.Equal(t, "AZN.L", Ticker("AZNL"))
}

func TestTicker_T212SuffixStrippedThenRouted(t *testing.T) {
	assert.Equal(t, "VOD.L", Ticker("VOD_EQ_GB"))
}

func TestTicker_UKStemRoutesToLSE(t *testing.T) {
	assert.Equal(t, "BARC.L", Ticker("BARC"))
}

func TestTicker_USExclusionNeverRoutesToLSE(t *testing.T) {
	// "BA" is a UK stem (BAE-adjacent alias) but "BAC" is a US bank explicitly
	// excluded; "BP" is UK but AAPL etc. must never gain a .L suffix.
	assert.Equal(t, "AAPL", Ticker("AAPL"))
	assert.Equal(t, "BAC", Ticker("BAC"))
}

func TestTicker_LeveragedPrefixRoutesToLSE(t *testing.T) {
	assert.Equal(t, "3LOY.L", Ticker("3LOY"))
}

func TestTicker_LeveragedTrailingDigitRoutesToLSE(t *testing.T) {
	assert.Equal(t, "XYZ3.L", Ticker("XYZ3"))
}

func TestTicker_EmptyStringReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", Ticker(""))
}

func TestTicker_IsIdempotent(t *testing.T) {
	// P7: Ticker(Ticker(x)) == Ticker(x).
	for _, raw := range []string{"LLOY1", "VOD_EQ_GB", "AAPL", "3LOY", "$tsla", "BARC"} {
		once := Ticker(raw)
		twice := Ticker(once)
		assert.Equal(t, once, twice, "not idempotent for %q", raw)
	}
}
