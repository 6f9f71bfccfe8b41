// Package normalize implements ticker and currency normalization.
package normalize

import (
	"regexp"
	"strings"
)

// aliasTable is the fixed aliasing table applied after suffix-stripping.
// A curated T212 -> Yahoo Finance
// mapping; kept as a representative subset rather than the full table.
var aliasTable = map[string]string{
	"SGLN1": "SGLN",
	"SGLNL": "SGLN",
	"SSLNL": "SSLN",
	"LLOY1": "LLOY",
	"VOD1":  "VOD",
	"BARC1": "BARC",
	"TSCO1": "TSCO",
	"BPL1":  "BP",
	"BPL":   "BP",
	"AZNL1": "AZN",
	"AZNL":  "AZN",
	"AVL":   "AV",
	"UUL":   "UU",
	"BAL":   "BA",
	"RBL":   "RKT",
	"MICCL": "MICC",
}

// ukTickers is a maintained set of known UK-listed stems; membership routes
// a symbol to the London exchange even without an explicit marker.
var ukTickers = map[string]bool{
	"LLOY": true, "BARC": true, "VOD": true, "HSBA": true, "TSCO": true,
	"BP": true, "AZN": true, "RR": true, "NG": true, "SGLN": true,
	"SSLN": true, "AV": true, "UU": true, "BA": true, "RKT": true, "MICC": true,
}

// usExclusions is a maintained set of symbols that must never be routed to
// London even if they'd otherwise match the UK heuristics.
var usExclusions = map[string]bool{
	"AAPL": true, "MSFT": true, "GOOG": true, "GOOGL": true, "AMZN": true,
	"NVDA": true, "TSLA": true, "META": true, "NFLX": true, "AMD": true,
	"INTC": true, "PYPL": true, "ADBE": true, "CSCO": true, "PEP": true,
	"COST": true, "AVGO": true, "QCOM": true, "TXN": true, "ORCL": true,
	"CRM": true, "IBM": true, "UBER": true, "ABNB": true, "SNOW": true,
	"PLTR": true, "SQ": true, "SHOP": true, "SPOT": true,
	"JPM": true, "BAC": true, "WFC": true, "C": true, "GS": true, "MS": true,
	"BLK": true, "AXP": true, "V": true, "MA": true, "COF": true, "USB": true,
	"CAT": true, "DE": true, "GE": true, "GM": true, "F": true, "LMT": true,
	"RTX": true, "HON": true, "UPS": true, "FDX": true, "UNP": true, "MMM": true,
	"WMT": true, "TGT": true, "HD": true, "LOW": true, "MCD": true, "SBUX": true,
	"NKE": true, "KO": true, "PG": true, "CL": true, "MO": true, "PM": true,
	"DIS": true, "CMCSA": true,
	"JNJ": true, "PFE": true, "MRK": true, "ABBV": true, "LLY": true, "UNH": true,
	"CVS": true, "AMGN": true, "GILD": true, "BMY": true, "ISRG": true, "TMO": true,
	"ABT": true, "DHR": true,
	"XOM": true, "CVX": true, "COP": true, "SLB": true, "EOG": true, "OXY": true,
	"KMI": true, "HAL": true,
	"T": true, "VZ": true, "TMUS": true,
	"SPY": true, "QQQ": true, "DIA": true, "IWM": true, "IVV": true, "VOO": true,
	"VTI": true, "GLD": true, "SLV": true, "ARKK": true, "SMH": true, "XLF": true,
	"XLE": true, "XLK": true, "XLV": true,
	"Z": true, "O": true, "D": true, "R": true, "K": true, "X": true, "S": true,
	"M": true, "A": true, "G": true,
}

var (
	t212SuffixPattern   = regexp.MustCompile(`(_EQ|_US|_BE|_DE|_GB|_FR|_NL|_ES|_IT)+$`)
	leveragedPrefixExp  = regexp.MustCompile(`^(3|5|7)[A-Z]+`)
	leveragedTrailingExp = regexp.MustCompile(`[23457]$`)
)

// Ticker applies the core's fixed ticker-normalization algorithm.
// It is idempotent: Ticker(Ticker(x)) == Ticker(x) (P7).
func Ticker(raw string) string {
	if raw == "" {
		return raw
	}

	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "$", "")

	// Already-dotted symbols pass through unchanged.
	if strings.Contains(s, ".") {
		return s
	}

	explicitGB := strings.Contains(s, "_EQ_GB") || (strings.Contains(s, "_EQ") && strings.Contains(s, "_GB"))

	s = t212SuffixPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "_", "")

	if mapped, ok := aliasTable[s]; ok {
		s = mapped
	}

	if strings.Contains(s, ".") {
		return s
	}

	isUK := explicitGB || ukTickers[s]
	isUSExcluded := usExclusions[s]
	isLeveraged := leveragedPrefixExp.MatchString(s) || leveragedTrailingExp.MatchString(s)

	if !isUSExcluded && (isUK || isLeveraged) {
		return s + ".L"
	}

	return s
}
