package strategy

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"leaderhound/internal/collect"
	"leaderhound/internal/types"
)

// Markdown runs the four sub-parsers over the projected Markdown and merges
// their entries with priority header > podium > table > list: for each rank
// the highest-priority parser that produced it wins.
func Markdown(cap *collect.Capture) *Output {
	md := cap.Markdown
	if strings.TrimSpace(md) == "" {
		return nil
	}

	lines := splitMarkdownLines(md)
	hint := detectColumnOrder(lines)

	parsed := []struct {
		priority int
		entries  []types.Entry
	}{
		{4, parseHeaderBlocks(lines)},
		{3, parsePodium(lines, hint)},
		{2, parseTables(lines)},
		{1, parseRankedList(lines, hint)},
	}

	byRank := make(map[int]types.Entry)
	priority := make(map[int]int)
	var unranked []types.Entry
	for _, p := range parsed {
		for _, e := range p.entries {
			if e.Rank == 0 {
				unranked = append(unranked, e)
				continue
			}
			if prev, ok := priority[e.Rank]; !ok || p.priority > prev {
				byRank[e.Rank] = e
				priority[e.Rank] = p.priority
			}
		}
	}

	ranks := make([]int, 0, len(byRank))
	for r := range byRank {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)

	entries := make([]types.Entry, 0, len(ranks)+len(unranked))
	for _, r := range ranks {
		entries = append(entries, byRank[r])
	}
	next := len(ranks) + 1
	for _, e := range unranked {
		e.Rank = next
		next++
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil
	}
	return &Output{Source: types.SourceMarkdown, Entries: entries, Confidence: 75}
}

// columnOrder is the disambiguation hint for bare amounts: on sites whose
// table header puts Prize/Reward before Wagered, the first bare amount in a
// row is the prize.
type columnOrder struct {
	prizeFirst bool
	known      bool
}

var (
	wagerHeaderRe = regexp.MustCompile(`(?i)\bwager(ed)?\b|\bamount\b`)
	prizeHeaderRe = regexp.MustCompile(`(?i)\bprize\b|\breward\b|\bwinnings\b`)
)

func detectColumnOrder(lines []string) columnOrder {
	for _, line := range lines {
		if !strings.Contains(line, "|") {
			continue
		}
		wi := wagerHeaderRe.FindStringIndex(line)
		pi := prizeHeaderRe.FindStringIndex(line)
		if wi != nil && pi != nil {
			return columnOrder{prizeFirst: pi[0] < wi[0], known: true}
		}
	}
	return columnOrder{}
}

func splitMarkdownLines(md string) []string {
	raw := strings.Split(md, "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = strings.TrimRight(l, " \t\r")
	}
	return out
}

var (
	separatorLineRe = regexp.MustCompile(`^[\s|:\-=_*]+$`)
	imageOnlyRe     = regexp.MustCompile(`^\s*!\[[^\]]*\]\([^)]*\)\s*$`)
	wagerLabelRe    = regexp.MustCompile(`(?i)wager(?:ed)?\s*:?\s*(.*)$`)
	prizeLabelRe    = regexp.MustCompile(`(?i)(?:prize|reward|payout|winnings|bonus)\s*:?\s*(.*)$`)
	prizeIconRe     = regexp.MustCompile(`🎁|🏆|💰|🪙|(?i)!\[[^\]]*(?:prize|reward|coin|gift)[^\]]*\]|(?i)\((?:[^)]*(?:prize|reward|coin|gift)[^)]*)\)`)
	pointsSuffixRe  = regexp.MustCompile(`(?i)^([\d.,]+)\s*(points?|coins?|gems?|tokens?|tickets?|xp)$`)
)

func isSeparatorLine(s string) bool {
	t := strings.TrimSpace(s)
	return t == "" || separatorLineRe.MatchString(t)
}

func isImageOnlyLine(s string) bool {
	return imageOnlyRe.MatchString(s)
}

// unescapeMD removes the backslash escapes markdown projection introduces
// ("\$2,000" and friends) before amount parsing.
func unescapeMD(s string) string {
	return backslashEscRe.ReplaceAllString(s, "$1")
}

// labeledWager extracts an amount from a "Wagered: $X" line. The second
// return distinguishes a bare label (amount on a later line) from a miss.
func labeledWager(line string) (amount float64, labelOnly, ok bool) {
	m := wagerLabelRe.FindStringSubmatch(unescapeMD(line))
	if m == nil {
		return 0, false, false
	}
	rest := strings.TrimSpace(m[1])
	if rest == "" {
		return 0, true, true
	}
	if v, okAmt := ParseAmount(rest); okAmt {
		return v, false, true
	}
	if vals := FindAmounts(rest); len(vals) > 0 {
		return vals[0], false, true
	}
	return 0, true, true
}

func labeledPrize(line string) (amount float64, labelOnly, ok bool) {
	m := prizeLabelRe.FindStringSubmatch(unescapeMD(line))
	if m == nil {
		return 0, false, false
	}
	rest := strings.TrimSpace(m[1])
	if rest == "" {
		return 0, true, true
	}
	if v, okAmt := ParseAmount(rest); okAmt {
		return v, false, true
	}
	if vals := FindAmounts(rest); len(vals) > 0 {
		return vals[0], false, true
	}
	return 0, true, true
}

// usernameCandidate reports whether a markdown line plausibly holds a
// username: not a separator, not an image, not a bare amount, and valid
// after cleaning.
func usernameCandidate(line string) (string, bool) {
	if isSeparatorLine(line) || isImageOnlyLine(line) {
		return "", false
	}
	t := strings.TrimSpace(unescapeMD(line))
	if t == "" {
		return "", false
	}
	if _, ok := ParseAmount(t); ok {
		return "", false
	}
	name := CleanMarkdownUsername(t)
	if name == types.HiddenUsername {
		return "", false
	}
	if !ValidUsername(name) {
		return "", false
	}
	return name, true
}

func newMarkdownEntry() types.Entry {
	return types.Entry{ExtractedAt: time.Now(), LeaderboardType: types.TypeCurrent}
}
