// Package goal implements the GoalPlannerAgent specialist: an
// envelope-conforming leaf whose planning algorithm is an external
// collaborator's concern. This package supplies a deterministic compound
// -growth projection from portfolio state and a user-supplied target so the
// specialist is independently useful without a configured external planner.
package goal

import (
	"context"

	"github.com/alphacouncil/core/internal/fabricator"
)

// Agent is the GoalPlannerAgent specialist.
type Agent struct{}

func New() *Agent { return &Agent{} }

func (a *Agent) Name() string { return "goal" }

// Analyze expects input{"portfolio": *fabricator.PortfolioData, "target_value": float64,
// "monthly_contribution": float64, "annual_return_pct": float64}. The
// projection horizon is fixed at 5 years (projected_5y_value).
func (a *Agent) Analyze(_ context.Context, input map[string]any) (map[string]any, error) {
	portfolio, _ := input["portfolio"].(*fabricator.PortfolioData)
	targetValue, _ := input["target_value"].(float64)
	monthlyContribution, _ := input["monthly_contribution"].(float64)
	annualReturnPct, _ := input["annual_return_pct"].(float64)
	if annualReturnPct == 0 {
		annualReturnPct = 6.0 // conservative long-run default
	}

	currentValue := 0.0
	if portfolio != nil {
		currentValue, _ = portfolio.TotalValue.Decimal.Float64()
	}

	monthsToTarget := monthsToReachTarget(currentValue, targetValue, monthlyContribution, annualReturnPct)
	projectedIn5y := projectValue(currentValue, monthlyContribution, annualReturnPct, 5*12)

	return map[string]any{
		"current_value":             currentValue,
		"target_value":              targetValue,
		"months_to_target":          monthsToTarget,
		"projected_5y_value":        projectedIn5y,
		"assumed_annual_return_pct": annualReturnPct,
	}, nil
}

// projectValue compounds monthly at the given annual rate for months steps,
// adding monthlyContribution at the start of each month.
func projectValue(current, monthlyContribution, annualReturnPct float64, months int) float64 {
	monthlyRate := annualReturnPct / 100.0 / 12.0
	value := current
	for i := 0; i < months; i++ {
		value = (value + monthlyContribution) * (1 + monthlyRate)
	}
	return value
}

// monthsToReachTarget returns -1 if the target is unreachable under the
// assumed contribution/return within a 100-year cap.
func monthsToReachTarget(current, target, monthlyContribution, annualReturnPct float64) int {
	if target <= current {
		return 0
	}
	monthlyRate := annualReturnPct / 100.0 / 12.0
	if monthlyContribution <= 0 && monthlyRate <= 0 {
		return -1
	}

	const capMonths = 1200
	value := current
	for month := 1; month <= capMonths; month++ {
		value = (value + monthlyContribution) * (1 + monthlyRate)
		if value >= target {
			return month
		}
	}
	return -1
}
