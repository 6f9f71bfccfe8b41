// Package forecast implements the ForecastingAgent specialist.
// The underlying predictive model is an external collaborator's concern;
// this package supplies the deterministic dampened double-exponential
// smoothing (Holt) fallback used when that model is
// unavailable or fails its sanity check, and the bar sanitization /
// horizon-capping contract around it.
package forecast

import (
	"context"
	"fmt"

	"github.com/alphacouncil/core/internal/errkind"
	"github.com/alphacouncil/core/internal/fabricator"
	"github.com/alphacouncil/core/internal/money"
	"github.com/alphacouncil/core/internal/normalize"
)

const (
	minBars      = 50
	maxHorizon   = 96
	sanityMoveMax = 0.30 // 30% sanity cap on the first forecast step's move
	dampingPhi   = 0.90
	alpha        = 0.30
	beta         = 0.10
)

// Model is the external predictive model the agent prefers when available.
// Implementations own their own algorithm; this agent only applies the
// sanity check and falls back to Holt smoothing when Predict errs or its
// output fails the check.
type Model interface {
	Predict(ctx context.Context, ticker string, closes []money.Money, steps int) ([]float64, error)
}

// Agent is the ForecastingAgent specialist.
type Agent struct {
	Model Model // optional; nil always uses the Holt fallback
}

func New(model Model) *Agent { return &Agent{Model: model} }

func (a *Agent) Name() string { return "forecast" }

// Analyze expects input{"ticker": string, "bars": []fabricator.Bar, "days": int, "timeframe": string?}.
func (a *Agent) Analyze(ctx context.Context, input map[string]any) (map[string]any, error) {
	ticker, _ := input["ticker"].(string)
	bars, _ := input["bars"].([]fabricator.Bar)
	days, _ := input["days"].(int)

	if len(bars) < minBars {
		return nil, errkind.New(errkind.ValidationError, fmt.Sprintf("forecast requires at least %d bars, got %d", minBars, len(bars)))
	}
	if days <= 0 {
		days = 1
	}
	if days > maxHorizon {
		days = maxHorizon
	}

	closes := sanitizeCloses(bars)

	isFallback := false
	steps, err := a.tryModel(ctx, ticker, closes, days)
	if err != nil || !passesSanityCheck(closes, steps) {
		steps = holtDampedForecast(closes, days)
		isFallback = true
	}

	out := map[string]any{
		"ticker":       ticker,
		"forecast_24h": steps[0],
		"confidence":   confidenceFor(isFallback),
		"trend":        trendOf(closes, steps),
		"algorithm":    algorithmName(isFallback),
		"is_fallback":  isFallback,
		"series":       seriesOf(steps),
	}
	if days >= 2 {
		out["forecast_48h"] = steps[1]
	}
	if days >= 7 {
		out["forecast_7d"] = steps[6]
	}
	return out, nil
}

func (a *Agent) tryModel(ctx context.Context, ticker string, closes []money.Money, days int) ([]float64, error) {
	if a.Model == nil {
		return nil, errkind.New(errkind.UpstreamUnavailable, "no forecasting model configured")
	}
	return a.Model.Predict(ctx, ticker, closes, days)
}

// sanitizeCloses corrects pence/pound unit mismatches within the series
// itself before forecasting.
func sanitizeCloses(bars []fabricator.Bar) []money.Money {
	closes := make([]money.Money, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	if len(closes) < 2 {
		return closes
	}
	adjusted, adj := normalize.ValidateUnitConsistency(closes[len(closes)-1], closes[:len(closes)-1])
	if adj.Applied {
		closes[len(closes)-1] = adjusted
	}
	return closes
}

// passesSanityCheck rejects a model forecast whose first step implies a
// move beyond sanityMoveMax relative to the last observed close.
func passesSanityCheck(closes []money.Money, steps []float64) bool {
	if len(steps) == 0 {
		return false
	}
	last, _ := closes[len(closes)-1].Decimal.Float64()
	if last == 0 {
		return false
	}
	move := (steps[0] - last) / last
	if move < 0 {
		move = -move
	}
	return move <= sanityMoveMax
}

// holtDampedForecast applies dampened double-exponential smoothing (Holt,
// phi=dampingPhi) to produce `steps` forward values, deterministic given the
// same closes.
func holtDampedForecast(closes []money.Money, steps int) []float64 {
	vals := make([]float64, len(closes))
	for i, c := range closes {
		f, _ := c.Decimal.Float64()
		vals[i] = f
	}

	level := vals[0]
	trend := vals[1] - vals[0]
	for i := 1; i < len(vals); i++ {
		prevLevel := level
		level = alpha*vals[i] + (1-alpha)*(prevLevel+dampingPhi*trend)
		trend = beta*(level-prevLevel) + (1-beta)*dampingPhi*trend
	}

	out := make([]float64, steps)
	dampSum := 0.0
	for h := 1; h <= steps; h++ {
		dampSum += pow(dampingPhi, h)
		out[h-1] = level + dampSum*trend
	}
	return out
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func trendOf(closes []money.Money, steps []float64) string {
	if len(steps) == 0 {
		return "Neutral"
	}
	last, _ := closes[len(closes)-1].Decimal.Float64()
	switch {
	case steps[0] > last*1.005:
		return "Bullish"
	case steps[0] < last*0.995:
		return "Bearish"
	default:
		return "Neutral"
	}
}

func confidenceFor(isFallback bool) float64 {
	if isFallback {
		return 0.5
	}
	return 0.7
}

// seriesOf renders the projected steps as the [MODULE]'s series shape: one
// entry per forecast step, ascending.
func seriesOf(steps []float64) []map[string]any {
	out := make([]map[string]any, len(steps))
	for i, v := range steps {
		out[i] = map[string]any{"step": i + 1, "value": v}
	}
	return out
}

func algorithmName(isFallback bool) string {
	if isFallback {
		return "holt_damped_smoothing"
	}
	return "external_model"
}
