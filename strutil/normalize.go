// Package strutil holds small string-normalization helpers shared by the
// config, fetch, and lookup layers.
package strutil

import "strings"

// NormalizeUpper trims surrounding whitespace and upper-cases the token.
// Use for callsigns and locators where case carries no meaning.
func NormalizeUpper(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// NormalizeLower trims surrounding whitespace and lower-cases the token.
// Use for format and period keywords from config or query input.
func NormalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
