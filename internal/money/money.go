// Package money defines the single exact-decimal monetary type used across
// the core. All monetary ingestion converts to it immediately; all egress
// formats through it. No binary float ever carries a monetary value.
package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money wraps decimal.Decimal so every monetary field in the data model
// shares one exact-arithmetic type and one JSON representation.
type Money struct {
	decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{decimal.Zero}

// New builds a Money from a decimal.
func New(d decimal.Decimal) Money {
	return Money{d}
}

// FromFloat converts a float64 at the boundary where a provider API hands
// back a binary float; used only at ingestion, never internally.
func FromFloat(f float64) Money {
	return Money{decimal.NewFromFloat(f)}
}

// FromString parses an exact decimal string.
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: invalid decimal %q: %w", s, err)
	}
	return Money{d}, nil
}

// MustFromString parses or panics; intended for constants in tests/defaults.
func MustFromString(s string) Money {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{m.Decimal.Add(o.Decimal)} }
func (m Money) Sub(o Money) Money { return Money{m.Decimal.Sub(o.Decimal)} }
func (m Money) Mul(o Money) Money { return Money{m.Decimal.Mul(o.Decimal)} }
func (m Money) Div(o Money) Money { return Money{m.Decimal.Div(o.Decimal)} }

// DivInt divides by an exact integer denominator (e.g. 100 for pence<->pounds).
func (m Money) DivInt(n int64) Money {
	return Money{m.Decimal.Div(decimal.NewFromInt(n))}
}

// MulInt multiplies by an exact integer factor.
func (m Money) MulInt(n int64) Money {
	return Money{m.Decimal.Mul(decimal.NewFromInt(n))}
}

func (m Money) GreaterThan(o Money) bool        { return m.Decimal.GreaterThan(o.Decimal) }
func (m Money) LessThan(o Money) bool           { return m.Decimal.LessThan(o.Decimal) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.Decimal.GreaterThanOrEqual(o.Decimal) }
func (m Money) LessThanOrEqual(o Money) bool    { return m.Decimal.LessThanOrEqual(o.Decimal) }
func (m Money) IsZero() bool                    { return m.Decimal.IsZero() }
func (m Money) IsNegative() bool                { return m.Decimal.IsNegative() }
func (m Money) IsPositive() bool                { return m.Decimal.IsPositive() }

// Abs returns the absolute value.
func (m Money) Abs() Money { return Money{m.Decimal.Abs()} }

// Percent returns m * (pct/100), e.g. PositionSize.Percent(5) is 5% of it.
func (m Money) Percent(pct float64) Money {
	return Money{m.Decimal.Mul(decimal.NewFromFloat(pct / 100.0))}
}

// String renders a fixed 2-decimal presentation, e.g. "152.34". Currency
// symbols are attached by callers that know the currency code.
func (m Money) String() string {
	return m.Decimal.StringFixed(2)
}

// Display renders with a currency symbol prefix for user-visible text.
func (m Money) Display(currency string) string {
	symbol := currencySymbols[currency]
	if symbol == "" {
		return fmt.Sprintf("%s %s", m.String(), currency)
	}
	return symbol + m.String()
}

var currencySymbols = map[string]string{
	"USD": "$",
	"GBP": "£",
	"EUR": "€",
	"GBX": "", // pence has no symbol convention; Display falls back to code
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		m.Decimal = d
		return nil
	}
	// fall back to numeric JSON for providers that emit bare numbers
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("money: cannot unmarshal %s", string(data))
	}
	m.Decimal = decimal.NewFromFloat(f)
	return nil
}

// Sum adds a slice of Money values.
func Sum(values ...Money) Money {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// PenceToPounds converts exchange-pence to pounds with exact division by 100.
func PenceToPounds(pence Money) Money {
	return pence.DivInt(100)
}

// PoundsToPence converts pounds to pence with exact multiplication by 100.
func PoundsToPence(pounds Money) Money {
	return pounds.MulInt(100)
}
