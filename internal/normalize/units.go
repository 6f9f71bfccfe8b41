package normalize

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alphacouncil/core/internal/money"
)

var (
	penceFactorLow  = decimal.NewFromInt(80)
	penceFactorHigh = decimal.NewFromInt(120)
	poundFactorLow  = decimal.NewFromFloat(0.008)
	poundFactorHigh = decimal.NewFromFloat(0.012)
	hundred         = decimal.NewFromInt(100)
)

// UnitAdjustment describes a correction applied by ValidateUnitConsistency,
// for logging.
type UnitAdjustment struct {
	Applied    bool
	Factor     string // "divide_100" | "multiply_100" | "none"
	OldPrice   money.Money
	NewPrice   money.Money
	SeriesMed  money.Money
}

// ValidateUnitConsistency reconciles a possible pence/pounds mismatch between
// a bar series and a standalone current price.
// If the ratio median(closes)/currentPrice is in [80,120], currentPrice is
// multiplied by 100 to match the series; if it is in [0.008,0.012],
// currentPrice is divided by 100. Otherwise currentPrice passes through.
func ValidateUnitConsistency(currentPrice money.Money, closes []money.Money) (money.Money, UnitAdjustment) {
	if len(closes) == 0 || currentPrice.IsZero() {
		return currentPrice, UnitAdjustment{Applied: false, Factor: "none", OldPrice: currentPrice, NewPrice: currentPrice}
	}

	med := median(closes)
	if med.IsZero() {
		return currentPrice, UnitAdjustment{Applied: false, Factor: "none", OldPrice: currentPrice, NewPrice: currentPrice, SeriesMed: med}
	}

	ratio := med.Decimal.Div(currentPrice.Decimal)

	switch {
	// med ~100x currentPrice: the series is in pence while currentPrice is in
	// pounds, so currentPrice must scale up to match the series' units.
	case ratio.GreaterThanOrEqual(penceFactorLow) && ratio.LessThanOrEqual(penceFactorHigh):
		adjusted := money.New(currentPrice.Decimal.Mul(hundred))
		return adjusted, UnitAdjustment{Applied: true, Factor: "multiply_100", OldPrice: currentPrice, NewPrice: adjusted, SeriesMed: med}
	// med ~100x smaller than currentPrice: the series is in pounds while
	// currentPrice is in pence, so currentPrice must scale down.
	case ratio.GreaterThanOrEqual(poundFactorLow) && ratio.LessThanOrEqual(poundFactorHigh):
		adjusted := money.New(currentPrice.Decimal.Div(hundred))
		return adjusted, UnitAdjustment{Applied: true, Factor: "divide_100", OldPrice: currentPrice, NewPrice: adjusted, SeriesMed: med}
	default:
		return currentPrice, UnitAdjustment{Applied: false, Factor: "none", OldPrice: currentPrice, NewPrice: currentPrice, SeriesMed: med}
	}
}

func median(values []money.Money) money.Money {
	sorted := make([]money.Money, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Decimal.LessThan(sorted[j].Decimal)
	})
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	mid1, mid2 := sorted[n/2-1], sorted[n/2]
	return money.New(mid1.Decimal.Add(mid2.Decimal).Div(decimal.NewFromInt(2)))
}
