package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFloat_RoundTripsThroughString(t *testing.T) {
	m := FromFloat(152.34)
	assert.Equal(t, "152.34", m.String())
}

func TestFromString_InvalidReturnsError(t *testing.T) {
	_, err := FromString("not-a-number")
	assert.Error(t, err)
}

func TestMustFromString_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { MustFromString("nope") })
}

func TestArithmetic_AddSubMulDiv(t *testing.T) {
	a := MustFromString("10.00")
	b := MustFromString("4.00")

	assert.Equal(t, "14.00", a.Add(b).String())
	assert.Equal(t, "6.00", a.Sub(b).String())
	assert.Equal(t, "40.00", a.Mul(b).String())
	assert.Equal(t, "2.50", a.Div(b).String())
}

func TestDivIntMulInt_PenceExact(t *testing.T) {
	pence := MustFromString("15234")
	pounds := pence.DivInt(100)
	assert.Equal(t, "152.34", pounds.String())
	assert.Equal(t, "15234.00", pounds.MulInt(100).String())
}

func TestPenceToPoundsAndBack_AreExactInverses(t *testing.T) {
	pence := MustFromString("9999")
	pounds := PenceToPounds(pence)
	assert.Equal(t, "99.99", pounds.String())
	assert.Equal(t, pence.String(), PoundsToPence(pounds).String())
}

func TestComparisons(t *testing.T) {
	a := MustFromString("5.00")
	b := MustFromString("10.00")

	assert.True(t, a.LessThan(b))
	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.LessThanOrEqual(a))
	assert.True(t, a.GreaterThanOrEqual(a))
}

func TestIsZeroNegativePositive(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.True(t, MustFromString("-1.00").IsNegative())
	assert.True(t, MustFromString("1.00").IsPositive())
}

func TestAbs(t *testing.T) {
	assert.Equal(t, "5.00", MustFromString("-5.00").Abs().String())
}

func TestPercent(t *testing.T) {
	base := MustFromString("1000.00")
	assert.Equal(t, "50.00", base.Percent(5).String())
}

func TestDisplay_KnownAndUnknownCurrency(t *testing.T) {
	m := MustFromString("152.34")
	assert.Equal(t, "$152.34", m.Display("USD"))
	assert.Equal(t, "£152.34", m.Display("GBP"))
	assert.Equal(t, "152.34 JPY", m.Display("JPY"))
}

func TestSum(t *testing.T) {
	total := Sum(MustFromString("1.50"), MustFromString("2.50"), MustFromString("1.00"))
	assert.Equal(t, "5.00", total.String())
}

func TestMarshalUnmarshalJSON_StringForm(t *testing.T) {
	m := MustFromString("152.34")
	b, err := json.Marshal(m)
	require.NoError(t, err)

	var out Money
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, m.String(), out.String())
}

func TestUnmarshalJSON_NumericFallback(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte("152.34"), &m))
	assert.Equal(t, "152.34", m.String())
}

func TestUnmarshalJSON_InvalidTypeErrors(t *testing.T) {
	var m Money
	assert.Error(t, json.Unmarshal([]byte("true"), &m))
}
