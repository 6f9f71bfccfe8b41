package goal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphacouncil/core/internal/fabricator"
	"github.com/alphacouncil/core/internal/money"
)

func TestAnalyze_ProjectsAndComputesMonthsToTarget(t *testing.T) {
	a := New()
	out, err := a.Analyze(context.Background(), map[string]any{
		"portfolio":             &fabricator.PortfolioData{TotalValue: money.FromFloat(10000)},
		"target_value":          20000.0,
		"monthly_contribution":  500.0,
		"annual_return_pct":     6.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 10000.0, out["current_value"])
	months := out["months_to_target"].(int)
	assert.Greater(t, months, 0)
	assert.Less(t, months, 1200)
}

func TestAnalyze_ZeroCurrentValueWithNoPortfolio(t *testing.T) {
	a := New()
	out, err := a.Analyze(context.Background(), map[string]any{
		"target_value": 1000.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["current_value"])
	assert.Equal(t, 6.0, out["assumed_annual_return_pct"])
}

func TestMonthsToReachTarget_AlreadyThere(t *testing.T) {
	assert.Equal(t, 0, monthsToReachTarget(1000, 500, 0, 6))
}

func TestMonthsToReachTarget_Unreachable(t *testing.T) {
	assert.Equal(t, -1, monthsToReachTarget(0, 1000, 0, 0))
}
