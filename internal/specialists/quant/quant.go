// Package quant implements the QuantAgent specialist: a technical-signal
// leaf whose full indicator math is an external collaborator's concern.
// This package supplies the minimal deterministic indicator set merged into
// MarketContext.quant (rsi, macd, bbands, support/resistance): the signal
// derives deterministically from the last bar, and
// support <= current_price <= resistance when both exist, without claiming
// parity with any specific provider's formulas.
package quant

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alphacouncil/core/internal/errkind"
	"github.com/alphacouncil/core/internal/fabricator"
	"github.com/alphacouncil/core/internal/money"
)

const minBars = 50

// Agent is the QuantAgent specialist.
type Agent struct{}

func New() *Agent { return &Agent{} }

func (a *Agent) Name() string { return "quant" }

// Analyze expects input{"ticker": string, "bars": []fabricator.Bar}. Bars
// must have at least minBars entries.
func (a *Agent) Analyze(_ context.Context, input map[string]any) (map[string]any, error) {
	ticker, _ := input["ticker"].(string)
	bars, _ := input["bars"].([]fabricator.Bar)

	if len(bars) < minBars {
		return nil, errkind.New(errkind.ValidationError, fmt.Sprintf("quant requires at least %d bars, got %d", minBars, len(bars)))
	}

	closes := closesOf(bars)
	rsi := computeRSI(closes, 14)
	macdLine, macdSignal, macdHist := computeMACD(closes)
	upper, middle, lower := computeBollinger(closes, 20)
	support, resistance := pivotSupportResistance(bars)
	current := closes[len(closes)-1]

	signal := deriveSignal(rsi, macdHist, current, middle)

	return map[string]any{
		"ticker": ticker,
		"rsi":    rsi,
		"macd": map[string]any{
			"value":  macdLine,
			"signal": macdSignal,
			"hist":   macdHist,
		},
		"bbands": map[string]any{
			"upper":  upper,
			"middle": middle,
			"lower":  lower,
		},
		"signal":     signal,
		"support":    support,
		"resistance": resistance,
	}, nil
}

func closesOf(bars []fabricator.Bar) []money.Money {
	out := make([]money.Money, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// computeRSI is RSI over the trailing period bars, using simple averages of
// gains and losses (no Wilder smoothing).
func computeRSI(closes []money.Money, period int) float64 {
	if len(closes) <= period {
		return 50.0
	}
	var gainSum, lossSum decimal.Decimal
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i].Decimal.Sub(closes[i-1].Decimal)
		if delta.IsPositive() {
			gainSum = gainSum.Add(delta)
		} else {
			lossSum = lossSum.Add(delta.Abs())
		}
	}
	if lossSum.IsZero() {
		return 100.0
	}
	avgGain := gainSum.Div(decimal.NewFromInt(int64(period)))
	avgLoss := lossSum.Div(decimal.NewFromInt(int64(period)))
	rs, _ := avgGain.Div(avgLoss).Float64()
	return 100.0 - (100.0 / (1.0 + rs))
}

// computeMACD returns the 12/26 EMA spread and its 9-period signal line.
func computeMACD(closes []money.Money) (line, signal, hist float64) {
	ema12 := ema(closes, 12)
	ema26 := ema(closes, 26)
	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = ema12[i] - ema26[i]
	}
	signalLine := emaFloat(macdLine, 9)
	n := len(closes) - 1
	return macdLine[n], signalLine[n], macdLine[n] - signalLine[n]
}

func ema(closes []money.Money, period int) []float64 {
	vals := make([]float64, len(closes))
	for i, c := range closes {
		f, _ := c.Decimal.Float64()
		vals[i] = f
	}
	return emaFloat(vals, period)
}

func emaFloat(vals []float64, period int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = vals[i]*k + out[i-1]*(1-k)
	}
	return out
}

// computeBollinger returns the period-window SMA and ±2 std-dev bands over
// the trailing window.
func computeBollinger(closes []money.Money, period int) (upper, middle, lower float64) {
	if len(closes) < period {
		period = len(closes)
	}
	window := closes[len(closes)-period:]
	sum := decimal.Zero
	for _, c := range window {
		sum = sum.Add(c.Decimal)
	}
	meanDec := sum.Div(decimal.NewFromInt(int64(period)))
	mean, _ := meanDec.Float64()

	var variance float64
	for _, c := range window {
		f, _ := c.Decimal.Float64()
		diff := f - mean
		variance += diff * diff
	}
	variance /= float64(period)
	stddev := math.Sqrt(variance)

	return mean + 2*stddev, mean, mean - 2*stddev
}

// pivotSupportResistance uses the trailing 20-bar low/high as a simple
// pivot-based support/resistance pair.
func pivotSupportResistance(bars []fabricator.Bar) (support, resistance money.Money) {
	window := bars
	if len(window) > 20 {
		window = window[len(window)-20:]
	}
	support = window[0].Low
	resistance = window[0].High
	for _, b := range window {
		if b.Low.LessThan(support) {
			support = b.Low
		}
		if b.High.GreaterThan(resistance) {
			resistance = b.High
		}
	}
	return support, resistance
}

// deriveSignal applies a small fixed rule set over RSI/MACD-histogram/price
// vs moving average to produce the required signal enum.
func deriveSignal(rsi, macdHist float64, current money.Money, middle float64) string {
	currentF, _ := current.Decimal.Float64()

	bullish := macdHist > 0 && currentF > middle
	bearish := macdHist < 0 && currentF < middle

	switch {
	case rsi >= 70 && !bullish:
		return "Sell"
	case rsi <= 30 && !bearish:
		return "Buy"
	case bullish:
		return "Buy"
	case bearish:
		return "Sell"
	case rsi > 45 && rsi < 55:
		return "Neutral"
	default:
		return "Hold"
	}
}
