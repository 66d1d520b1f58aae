// Package refine cleans a fused entry list before validation: the sanitizer
// drops rows that are not real players and the normalizer coerces the
// survivors onto the canonical schema.
package refine

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"leaderhound/internal/strategy"
	"leaderhound/internal/types"
)

// aggregateRowRe matches usernames that are really summary rows.
var aggregateRowRe = regexp.MustCompile(`(?i)^(total|sum|average|prize pool|grand total|volume|duration|ending|remaining|participants|entries|players|time (left|remaining)|\d+\s*(days?|hours?|hrs?|mins?|minutes?|secs?|seconds?))\b`)

// Sanitizer drops entries that cannot be real leaderboard rows. SiteNames
// holds exact username strings that are really the site referring to itself;
// Domain adds suffix matching against the site's own host.
type Sanitizer struct {
	SiteNames []string
	Domain    string
}

// Sanitize filters the entries and returns the survivors plus warnings for
// rows that were suspicious but kept.
func (s *Sanitizer) Sanitize(entries []types.Entry) (clean []types.Entry, warnings []string) {
	for _, e := range entries {
		switch {
		case !strategy.ValidUsername(e.Username):
			continue
		case s.isWebsiteName(e.Username):
			continue
		case e.Username == types.HiddenUsername && e.Wager == 0 && e.Prize == 0:
			continue
		case math.IsNaN(e.Wager) || math.IsInf(e.Wager, 0) || e.Wager < 0:
			continue
		}
		clean = append(clean, e)
	}

	clean, aggWarnings := s.filterAggregateRows(clean)
	warnings = append(warnings, aggWarnings...)
	return clean, warnings
}

// isWebsiteName rejects the site's own name posing as a player. Email-shaped
// strings are exempt: "stake.com" as a domain suffix must not shadow a user
// whose handle happens to embed an address.
func (s *Sanitizer) isWebsiteName(name string) bool {
	if strategy.IsEmailShaped(name) {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, site := range s.SiteNames {
		if lower == strings.ToLower(site) {
			return true
		}
	}
	if s.Domain != "" {
		d := strings.ToLower(s.Domain)
		bare := strings.TrimPrefix(d, "www.")
		if lower == d || lower == bare {
			return true
		}
		// "stake", "stake.com", "stake.us" style suffix forms.
		if base, _, found := strings.Cut(bare, "."); found && base != "" {
			if lower == base || strings.HasPrefix(lower, base+".") {
				return true
			}
		}
	}
	return false
}

// filterAggregateRows removes summary rows masquerading as entries: a
// label-shaped username, or a wager equal to the sum of every other wager.
// A wager 10x the next highest is only flagged, never removed.
func (s *Sanitizer) filterAggregateRows(entries []types.Entry) ([]types.Entry, []string) {
	if len(entries) < 2 {
		return entries, nil
	}

	var totalWager float64
	for _, e := range entries {
		totalWager += e.Wager
	}

	var warnings []string
	out := make([]types.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Username != types.HiddenUsername && aggregateRowRe.MatchString(e.Username) {
			continue
		}
		if len(entries) >= 3 {
			rest := totalWager - e.Wager
			if rest > 0 && math.Abs(e.Wager-rest) <= math.Max(rest*0.01, 100) {
				continue
			}
		}
		out = append(out, e)
	}

	// Outlier check runs on the survivors.
	if len(out) >= 2 {
		sorted := make([]float64, 0, len(out))
		for _, e := range out {
			if e.Wager > 0 {
				sorted = append(sorted, e.Wager)
			}
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		if len(sorted) >= 2 && sorted[1] > 0 && sorted[0] >= sorted[1]*10 {
			warnings = append(warnings, fmt.Sprintf("top wager %.2f is 10x the next highest %.2f", sorted[0], sorted[1]))
		}
	}
	return out, warnings
}
