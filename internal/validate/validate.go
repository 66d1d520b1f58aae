// Package validate judges a normalized entry list: hard completeness and
// sanity checks that cost confidence, plus advisory warnings that are only
// surfaced on the result.
package validate

import (
	"fmt"

	"leaderhound/internal/types"
)

// Options tunes the dataset checks.
type Options struct {
	MinRows         int  // minimum entries for completeness (default 2)
	CheckSequential bool // record the first rank gap as an issue
}

func (o Options) minRows() int {
	if o.MinRows <= 0 {
		return 2
	}
	return o.MinRows
}

// agreementFloor is the cross-validation agreement below which the result
// is marked low confidence.
const agreementFloor = 0.7

// Confidence penalties per failed check.
const (
	penaltyCompleteness = 15
	penaltySanity       = 10
	penaltyAgreement    = 20
)

// Dataset runs the completeness, sanity, and strategy-agreement checks and
// accumulates the confidence penalty for the failures.
func Dataset(entries []types.Entry, overallAgreement float64, opts Options) types.Validation {
	v := types.Validation{Completeness: true, Sanity: true, StrategyAgreement: true}

	if len(entries) < opts.minRows() {
		v.Completeness = false
		v.Issues = append(v.Issues, fmt.Sprintf("row_count %d below minimum %d", len(entries), opts.minRows()))
	}

	ranked := 0
	maxRank := 0
	seen := make(map[int]int)
	for _, e := range entries {
		if e.Rank > 0 {
			ranked++
			seen[e.Rank]++
			if e.Rank > maxRank {
				maxRank = e.Rank
			}
		}
	}
	if ranked > 0 {
		if maxRank != len(entries) {
			v.Completeness = false
			v.Issues = append(v.Issues, fmt.Sprintf("rank_count_mismatch: max rank %d, rows %d", maxRank, len(entries)))
		}
		for r, n := range seen {
			if n > 1 {
				v.Completeness = false
				v.Issues = append(v.Issues, fmt.Sprintf("duplicate rank %d", r))
				break
			}
		}
		if opts.CheckSequential {
			if gap := firstRankGap(entries); gap > 0 {
				v.Issues = append(v.Issues, fmt.Sprintf("rank gap before %d", gap))
			}
		}
	}

	for _, e := range entries {
		if e.Username == "" {
			v.Sanity = false
			v.Issues = append(v.Issues, "empty username")
			break
		}
		if e.Wager < 0 || e.Prize < 0 || e.Rank < 0 {
			v.Sanity = false
			v.Issues = append(v.Issues, fmt.Sprintf("negative field on rank %d", e.Rank))
			break
		}
	}

	if overallAgreement < agreementFloor {
		v.StrategyAgreement = false
		v.Issues = append(v.Issues, "lowConfidence")
	}

	if !v.Completeness {
		v.ConfidencePenalty += penaltyCompleteness
	}
	if !v.Sanity {
		v.ConfidencePenalty += penaltySanity
	}
	if !v.StrategyAgreement {
		v.ConfidencePenalty += penaltyAgreement
	}
	v.Valid = v.Completeness && v.Sanity && v.StrategyAgreement
	return v
}

// ApplyPenalty subtracts the validation penalty from a confidence value,
// clamped to [0, 100].
func ApplyPenalty(confidence float64, v types.Validation) float64 {
	c := confidence - v.ConfidencePenalty
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func firstRankGap(entries []types.Entry) int {
	present := make(map[int]bool)
	maxRank := 0
	for _, e := range entries {
		if e.Rank > 0 {
			present[e.Rank] = true
			if e.Rank > maxRank {
				maxRank = e.Rank
			}
		}
	}
	for r := 1; r <= maxRank; r++ {
		if !present[r] {
			return r
		}
	}
	return 0
}

// orderTolerance is the fraction of out-of-order rows tolerated before the
// ordering warnings fire.
const orderTolerance = 0.2

// Warnings runs the advisory checks. None of them affect confidence.
func Warnings(entries []types.Entry) []string {
	if len(entries) == 0 {
		return nil
	}
	var warnings []string

	if frac := orderViolations(entries, func(e types.Entry) float64 { return e.Prize }); frac > orderTolerance {
		warnings = append(warnings, fmt.Sprintf("prizes increase with rank on %.0f%% of rows", frac*100))
	}
	if frac := orderViolations(entries, func(e types.Entry) float64 { return e.Wager }); frac > orderTolerance {
		warnings = append(warnings, fmt.Sprintf("wagers increase with rank on %.0f%% of rows", frac*100))
	}

	// Prizes tracking the rank number beyond the top 20 are almost always a
	// mis-parsed rank column.
	artifacts := 0
	for _, e := range entries {
		if e.Rank > 20 && e.Prize > 0 && e.Prize == float64(e.Rank) {
			artifacts++
		}
	}
	if artifacts > 0 {
		warnings = append(warnings, fmt.Sprintf("%d prizes equal their rank number past rank 20", artifacts))
	}

	if len(entries) > 3 {
		over := 0
		for _, e := range entries {
			if e.Wager > 0 && e.Prize > e.Wager {
				over++
			}
		}
		if float64(over)/float64(len(entries)) > orderTolerance {
			warnings = append(warnings, fmt.Sprintf("prize exceeds wager on %d of %d rows", over, len(entries)))
		}
	}

	allZero := true
	counts := make(map[float64]int)
	for _, e := range entries {
		if e.Wager != 0 {
			allZero = false
			counts[e.Wager]++
		}
	}
	if allZero {
		warnings = append(warnings, "all wagers are zero")
	}
	for v, n := range counts {
		if n >= 3 {
			warnings = append(warnings, fmt.Sprintf("wager %.2f repeats %d times", v, n))
			break
		}
	}
	return warnings
}

// orderViolations counts adjacent pairs where the value increases as rank
// increases, over rows where both values are present.
func orderViolations(entries []types.Entry, field func(types.Entry) float64) float64 {
	pairs, bad := 0, 0
	for i := 1; i < len(entries); i++ {
		a, b := field(entries[i-1]), field(entries[i])
		if a == 0 || b == 0 {
			continue
		}
		pairs++
		if b > a {
			bad++
		}
	}
	if pairs == 0 {
		return 0
	}
	return float64(bad) / float64(pairs)
}
