package normalize

import (
	"strings"

	"github.com/alphacouncil/core/internal/money"
)

var penceExchangeSuffixes = []string{".L", ".IL"}

// IsPenceExchange reports whether a normalized ticker trades in minor units
// (pence) rather than the major currency unit.
func IsPenceExchange(normalizedTicker string) bool {
	for _, suf := range penceExchangeSuffixes {
		if strings.HasSuffix(normalizedTicker, suf) {
			return true
		}
	}
	return false
}

// IsUKStock reports whether a ticker/currency/exchange combination should be
// treated as a UK stock for currency-normalization purposes: either it trades
// on a pence exchange, or its currency code is GBX/GBP and its exchange
// metadata names London.
func IsUKStock(normalizedTicker, currency, exchange string) bool {
	if IsPenceExchange(normalizedTicker) {
		return true
	}
	currency = strings.ToUpper(currency)
	if currency != "GBX" && currency != "GBP" {
		return false
	}
	return strings.EqualFold(exchange, "LSE") || strings.Contains(strings.ToUpper(exchange), "LONDON")
}

// PenceToPounds converts an exact pence amount to pounds (divide by 100).
func PenceToPounds(pence money.Money) money.Money {
	return money.PenceToPounds(pence)
}

// PoundsToPence converts an exact pounds amount to pence (multiply by 100).
func PoundsToPence(pounds money.Money) money.Money {
	return money.PoundsToPence(pounds)
}
