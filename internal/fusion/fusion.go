// Package fusion aligns the outputs of the extraction strategies, measures
// how well they agree, recommends the source the final result should be
// built from, and adjusts its confidence accordingly.
package fusion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"leaderhound/internal/strategy"
	"leaderhound/internal/types"
)

// Fused is the cross-validated pick: the recommended source's entries with
// the agreement-adjusted confidence and the full report.
type Fused struct {
	Source     types.Source
	Entries    []types.Entry
	Confidence float64
	Report     *types.CrossValidation
}

// amountTolerance is the relative slack under which two amounts count as
// the same value.
const amountTolerance = 0.05

// pairMatchThreshold is the fraction of comparable fields that must agree
// for a cross-source pair to count as a match.
const pairMatchThreshold = 0.75

// Fuse cross-validates the strategy outputs and returns the recommended
// merged result. Outputs with no entries are ignored; nil means nothing
// usable was extracted.
func Fuse(outputs []*strategy.Output) *Fused {
	var live []*strategy.Output
	for _, o := range outputs {
		if o != nil && len(o.Entries) > 0 {
			live = append(live, o)
		}
	}
	if len(live) == 0 {
		return nil
	}

	if len(live) == 1 {
		o := live[0]
		report := &types.CrossValidation{
			OverallAgreement:  1,
			FieldAgreement:    types.FieldAgreement{Username: 1, Rank: 1, Wager: 1, Prize: 1},
			RecommendedSource: o.Source,
			ConfidenceAdjust:  -5,
			SingleSource:      true,
		}
		return &Fused{
			Source:     o.Source,
			Entries:    o.Entries,
			Confidence: clamp(o.Confidence - 5),
			Report:     report,
		}
	}

	groups := alignEntries(live)
	report, agreedBySource := crossValidate(groups, live)

	best := recommendSource(live, agreedBySource, report)
	report.RecommendedSource = best.Source

	return &Fused{
		Source:     best.Source,
		Entries:    best.Entries,
		Confidence: clamp(best.Confidence + report.ConfidenceAdjust),
		Report:     report,
	}
}

// alignment group: one logical entry as seen by each source.
type group struct {
	key     string
	display string
	entries map[types.Source]types.Entry
}

// alignKey is the stable alignment key: rank when present, otherwise the
// normalized username with the wager rounded to a whole unit.
func alignKey(e types.Entry) string {
	if e.Rank > 0 {
		return fmt.Sprintf("r:%d", e.Rank)
	}
	return fmt.Sprintf("u:%s|%d", NormalizeUsername(e.Username), int(math.Round(e.Wager)))
}

// NormalizeUsername lowercases and strips asterisks, whitespace, underscores
// and hyphens so censored or restyled forms of the same name compare equal.
func NormalizeUsername(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '-', ' ', '\t':
			return -1
		}
		return r
	}, s)
}

func alignEntries(live []*strategy.Output) []group {
	byKey := make(map[string]*group)
	var order []string
	for _, o := range live {
		for _, e := range o.Entries {
			k := alignKey(e)
			g, ok := byKey[k]
			if !ok {
				g = &group{key: k, display: e.Username, entries: make(map[types.Source]types.Entry)}
				byKey[k] = g
				order = append(order, k)
			}
			// First entry per source wins within a group.
			if _, seen := g.entries[o.Source]; !seen {
				g.entries[o.Source] = e
			}
		}
	}
	groups := make([]group, 0, len(order))
	for _, k := range order {
		groups = append(groups, *byKey[k])
	}
	return groups
}

// fieldCmp accumulates agreement counts for one field.
type fieldCmp struct{ agree, total int }

func (f fieldCmp) ratio() float64 {
	if f.total == 0 {
		return 1
	}
	return float64(f.agree) / float64(f.total)
}

func crossValidate(groups []group, live []*strategy.Output) (*types.CrossValidation, map[types.Source]int) {
	var userCmp, rankCmp, wagerCmp, prizeCmp fieldCmp
	var matchedPairs, totalPairs int
	var discrepancies []types.Discrepancy
	entryAgreement := make(map[string]types.EntryAgreement)
	agreedBySource := make(map[types.Source]int)

	for _, g := range groups {
		sources := sourceList(g.entries)
		names := make([]string, len(sources))
		for i, s := range sources {
			names[i] = string(s)
		}

		if len(sources) < 2 {
			entryAgreement[g.display] = types.EntryAgreement{Status: types.AgreementSingleSource, Sources: names}
			continue
		}

		allMatch := true
		for i := 0; i < len(sources); i++ {
			for j := i + 1; j < len(sources); j++ {
				a, b := g.entries[sources[i]], g.entries[sources[j]]
				agree, comparable := 0, 0

				comparable++
				if NormalizeUsername(a.Username) == NormalizeUsername(b.Username) {
					agree++
					userCmp.agree++
				} else {
					discrepancies = append(discrepancies, discrepancy(g.key, "username", sources[i], a.Username, sources[j], b.Username))
				}
				userCmp.total++

				if a.Rank > 0 && b.Rank > 0 {
					comparable++
					if abs(a.Rank-b.Rank) <= 1 {
						agree++
						rankCmp.agree++
					} else {
						discrepancies = append(discrepancies, discrepancy(g.key, "rank", sources[i], fmt.Sprint(a.Rank), sources[j], fmt.Sprint(b.Rank)))
					}
					rankCmp.total++
				}
				if a.Wager > 0 && b.Wager > 0 {
					comparable++
					if amountsClose(a.Wager, b.Wager) {
						agree++
						wagerCmp.agree++
					} else {
						discrepancies = append(discrepancies, discrepancy(g.key, "wager", sources[i], formatAmount(a.Wager), sources[j], formatAmount(b.Wager)))
					}
					wagerCmp.total++
				}
				if a.Prize > 0 && b.Prize > 0 {
					comparable++
					if amountsClose(a.Prize, b.Prize) {
						agree++
						prizeCmp.agree++
					} else {
						discrepancies = append(discrepancies, discrepancy(g.key, "prize", sources[i], formatAmount(a.Prize), sources[j], formatAmount(b.Prize)))
					}
					prizeCmp.total++
				}

				totalPairs++
				if float64(agree)/float64(comparable) >= pairMatchThreshold {
					matchedPairs++
				} else {
					allMatch = false
				}
			}
		}

		status := types.AgreementDisputed
		if allMatch {
			status = types.AgreementAgreed
			for _, s := range sources {
				agreedBySource[s]++
			}
		}
		entryAgreement[g.display] = types.EntryAgreement{Status: status, Sources: names}
	}

	overall := 0.0
	if totalPairs > 0 {
		overall = float64(matchedPairs) / float64(totalPairs)
	}

	report := &types.CrossValidation{
		OverallAgreement: overall,
		FieldAgreement: types.FieldAgreement{
			Username: userCmp.ratio(),
			Rank:     rankCmp.ratio(),
			Wager:    wagerCmp.ratio(),
			Prize:    prizeCmp.ratio(),
		},
		Discrepancies:    discrepancies,
		EntryAgreement:   entryAgreement,
		ConfidenceAdjust: confidenceAdjust(overall, len(discrepancies)),
	}
	return report, agreedBySource
}

// confidenceAdjust is the agreement ladder plus the discrepancy penalty.
func confidenceAdjust(overall float64, discrepancies int) float64 {
	var adj float64
	switch {
	case overall >= 0.9:
		adj = 20
	case overall >= 0.7:
		adj = 10
	case overall >= 0.5:
		adj = 5
	case overall >= 0.3:
		adj = -10
	default:
		adj = -15
	}
	switch {
	case discrepancies > 10:
		adj -= 10
	case discrepancies > 5:
		adj -= 5
	}
	return adj
}

// recommendSource scores each live source and returns the winner. Ties go
// to the earlier output, which preserves the API-first ordering.
func recommendSource(live []*strategy.Output, agreedBySource map[types.Source]int, report *types.CrossValidation) *strategy.Output {
	best := live[0]
	bestScore := math.Inf(-1)
	for _, o := range live {
		score := sourceScore(o, agreedBySource[o.Source])
		if score > bestScore {
			best, bestScore = o, score
		}
	}
	return best
}

func sourceScore(o *strategy.Output, agreed int) float64 {
	n := len(o.Entries)
	wagerCov, prizeCov := coverage(o.Entries)
	score := 0.3 * o.Confidence
	score += math.Min(float64(n*2), 30)
	score += wagerCov * 20
	score += prizeCov * 10
	score += float64(agreed) * 3
	return score
}

func coverage(entries []types.Entry) (wager, prize float64) {
	if len(entries) == 0 {
		return 0, 0
	}
	var w, p int
	for _, e := range entries {
		if e.Wager > 0 {
			w++
		}
		if e.Prize > 0 {
			p++
		}
	}
	return float64(w) / float64(len(entries)), float64(p) / float64(len(entries))
}

func sourceList(m map[types.Source]types.Entry) []types.Source {
	out := make([]types.Source, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func discrepancy(key, field string, s1 types.Source, v1 string, s2 types.Source, v2 string) types.Discrepancy {
	return types.Discrepancy{
		Key:    key,
		Field:  field,
		Values: map[string]string{string(s1): v1, string(s2): v2},
	}
}

func amountsClose(a, b float64) bool {
	hi := math.Max(a, b)
	if hi == 0 {
		return true
	}
	return math.Abs(a-b) <= hi*amountTolerance
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
