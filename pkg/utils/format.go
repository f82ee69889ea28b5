// Package utils provides common utility functions for filingret.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatPct formats a percentage with the given number of decimals ("12.63%").
func FormatPct(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v)
}

// FormatSignedPct formats a percentage with an explicit sign ("+3.00%").
func FormatSignedPct(v float64, decimals int) string {
	return fmt.Sprintf("%+.*f%%", decimals, v)
}

// FormatOptionalPct formats a nullable percentage; nil renders as "n/a".
func FormatOptionalPct(v *float64, decimals int) string {
	if v == nil {
		return "n/a"
	}
	return FormatSignedPct(*v, decimals)
}

// FormatUSDCompact formats a dollar amount in compact notation.
// e.g., 1927345 → "$1.93M", 2950000000000 → "$2.95T"
func FormatUSDCompact(amount float64) string {
	prefix := "$"
	if amount < 0 {
		prefix = "-$"
	}
	amount = math.Abs(amount)

	switch {
	case amount >= 1e12:
		return fmt.Sprintf("%s%.2fT", prefix, amount/1e12)
	case amount >= 1e9:
		return fmt.Sprintf("%s%.2fB", prefix, amount/1e9)
	case amount >= 1e6:
		return fmt.Sprintf("%s%.2fM", prefix, amount/1e6)
	case amount >= 1e3:
		return fmt.Sprintf("%s%.2fK", prefix, amount/1e3)
	default:
		return fmt.Sprintf("%s%.2f", prefix, amount)
	}
}

// FormatCount formats an integer with thousands separators (12,345).
func FormatCount(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
