package model

import "fmt"

// RatePerImpressionCents is the flat billing rate: one impression is worth
// $0.10. All revenue math stays in integer cents; formatting to dollars
// happens only at the presentation edge.
const RatePerImpressionCents int64 = 10

// RevenueCents returns the revenue for n impressions in cents.
func RevenueCents(impressions int64) int64 {
	return impressions * RatePerImpressionCents
}

// FormatUSD renders cents as a dollar string for API responses and exports.
func FormatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
