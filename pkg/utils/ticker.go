package utils

import (
	"strings"
)

// Common US ticker aliases and renames.
var tickerAliases = map[string]string{
	"GOOGLE":    "GOOGL",
	"ALPHABET":  "GOOGL",
	"FACEBOOK":  "META",
	"FB":        "META",
	"APPLE":     "AAPL",
	"MICROSOFT": "MSFT",
	"AMAZON":    "AMZN",
	"NVIDIA":    "NVDA",
	"TESLA":     "TSLA",
	"NETFLIX":   "NFLX",
	"SQ":        "XYZ",
	"TWTR":      "X",
}

// Index and macro symbols used for market context, keyed by alias.
var indexTickers = map[string]string{
	"SP500":   "^GSPC",
	"S&P500":  "^GSPC",
	"S&P 500": "^GSPC",
	"GSPC":    "^GSPC",
	"NASDAQ":  "^IXIC",
	"DOW":     "^DJI",
	"VIX":     "^VIX",
	"DXY":     "DX-Y.NYB",
	"TNX":     "^TNX",
}

// NormalizeTicker normalizes a user-input ticker to its canonical exchange
// symbol. It handles aliases, uppercasing, whitespace and the "$" prefix.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	ticker = strings.TrimPrefix(ticker, "$")

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// ToYFinanceTicker converts a ticker to Yahoo Finance format. Share-class
// separators become dashes (BRK.B → BRK-B) and index aliases map to their
// caret symbols.
func ToYFinanceTicker(ticker string) string {
	ticker = NormalizeTicker(ticker)

	if idx, ok := indexTickers[ticker]; ok {
		return idx
	}
	if strings.HasPrefix(ticker, "^") || strings.Contains(ticker, "=") {
		return ticker
	}
	return strings.ReplaceAll(ticker, ".", "-")
}

// FromYFinanceTicker converts a Yahoo Finance symbol back to the exchange
// form (BRK-B → BRK.B).
func FromYFinanceTicker(yfTicker string) string {
	if strings.HasPrefix(yfTicker, "^") || strings.HasSuffix(yfTicker, ".NYB") {
		return yfTicker
	}
	return strings.ReplaceAll(yfTicker, "-", ".")
}

// IsIndex checks if the ticker is an index or macro symbol (not a stock).
func IsIndex(ticker string) bool {
	ticker = NormalizeTicker(ticker)
	if strings.HasPrefix(ticker, "^") {
		return true
	}
	if _, ok := indexTickers[ticker]; ok {
		return true
	}
	for _, v := range indexTickers {
		if v == ticker {
			return true
		}
	}
	return false
}
