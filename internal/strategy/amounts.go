// Package strategy implements the four independent extraction strategies
// (api, markdown, dom, geometric) plus the amount/rank/username parsing they
// share. Strategies operate purely on captured page data and never touch the
// browser.
package strategy

import (
	"regexp"
	"strconv"
	"strings"
)

// moneyTokenRe matches money-shaped tokens inside free text: an optional
// currency symbol, digits with thousands/decimal separators, and an optional
// k/m/b multiplier suffix.
var moneyTokenRe = regexp.MustCompile(`(?i)[$€£¥]?\s?\d[\d.,\s]*\d(?:\s?[kmb])?|[$€£¥]\s?\d(?:\s?[kmb])?|\b\d(?:\.\d+)?\s?[kmb]\b|\b\d+\b`)

var currencyStripRe = regexp.MustCompile(`[$€£¥\p{Sc}]|💰|🪙|💵|💸|🎁|🏆`)

// multipliers for shorthand amounts.
var amountMultipliers = map[byte]float64{'k': 1e3, 'm': 1e6, 'b': 1e9}

// ParseAmount converts a display amount to a non-negative float. It accepts
// U.S. ("1,234.56") and European ("1.234,56") separators, currency symbols
// and emoji, and k/m/b shorthand ("10k", "2.5m"). The second return is false
// when the string carries no parseable number.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(currencyStripRe.ReplaceAllString(s, ""))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	mult := 1.0
	if len(s) > 1 {
		if m, ok := amountMultipliers[s[len(s)-1]|0x20]; ok {
			last := s[len(s)-1]
			if last == 'k' || last == 'K' || last == 'm' || last == 'M' || last == 'b' || last == 'B' {
				mult = m
				s = s[:len(s)-1]
			}
		}
	}

	s = normalizeSeparators(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v * mult, true
}

// normalizeSeparators rewrites an amount string to plain decimal form,
// resolving whether "." and "," are thousands or decimal separators.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Whichever separator comes last is the decimal point.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// A single comma followed by exactly two digits is a decimal
		// ("1800,50"); otherwise commas are thousands separators.
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 == 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		// Dots with three-digit groups on every side are European
		// thousands separators ("1.234.567").
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		} else if len(s)-lastDot-1 == 3 && lastDot >= 1 && lastDot <= 3 {
			// Ambiguous "1.234": three trailing digits reads as thousands.
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// LooksLikeMoney reports whether the text contains at least one money-shaped
// token with either a currency marker or a separator/multiplier.
func LooksLikeMoney(s string) bool {
	if currencyStripRe.MatchString(s) {
		return true
	}
	m := moneyTokenRe.FindString(s)
	if m == "" {
		return false
	}
	return strings.ContainsAny(m, ".,kKmMbB")
}

// FindAmounts extracts every parseable amount from a line, in order.
func FindAmounts(s string) []float64 {
	var out []float64
	for _, tok := range moneyTokenRe.FindAllString(s, -1) {
		if v, ok := ParseAmount(tok); ok {
			out = append(out, v)
		}
	}
	return out
}

var (
	rankMarkerRe  = regexp.MustCompile(`^\s*#?\s*(\d{1,4})\s*(?:\.|\)|st|nd|rd|th)?\s*$`)
	romanNumerals = map[string]int{
		"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5,
		"vi": 6, "vii": 7, "viii": 8, "ix": 9, "x": 10,
	}
)

// ParseRank parses the many display forms of a rank: "#04.", "01", "4.",
// "4)", "1st", and Roman numerals I through X. Returns 0 when the text is
// not a rank.
func ParseRank(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if m := rankMarkerRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0
		}
		return n
	}
	if n, ok := romanNumerals[strings.ToLower(s)]; ok {
		return n
	}
	return 0
}

// IsRankLike reports whether an amount value is suspicious as a prize
// because it equals a plausible small rank number.
func IsRankLike(v float64) bool {
	if v != float64(int(v)) {
		return false
	}
	n := int(v)
	return n >= 1 && n <= 100
}
