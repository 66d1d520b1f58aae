package strategy

import (
	"regexp"
	"strconv"
	"strings"

	"leaderhound/internal/types"
)

var (
	explicitRankRe = regexp.MustCompile(`^\s*(?:\*\*#\*\*|#)\s*(\d{1,4})\s*\.?\s*(.*)$`)
	dottedRankRe   = regexp.MustCompile(`^\s*(\d{1,4})\s*[.)]\s+(.*)$`)
	bareIntRe      = regexp.MustCompile(`^\s*(\d{1,4})\s*$`)
	embeddedImgRe  = regexp.MustCompile(`^!\[[^\]]*\]\([^)]*\)\s*(.+)$`)
)

// parseRankedList extracts entries marked "#N", "**#**N", or "N.", plus
// bare integers continuing past the podium when they appear in sequence
// inside a Challengers-style context. Each rank collects a username,
// labeled Wagered/Prize fields, and unlabeled amounts disambiguated by the
// column-order hint or prize icons.
func parseRankedList(lines []string, hint columnOrder) []types.Entry {
	var entries []types.Entry
	lastRank := 0

	for i := 0; i < len(lines); i++ {
		rank, rest, ok := listRankAt(lines, i, lastRank)
		if !ok {
			continue
		}

		e := newMarkdownEntry()
		e.Rank = rank

		// Username may trail the rank marker on the same line.
		if rest != "" {
			if name, okName := usernameCandidate(rest); okName {
				e.Username = name
			}
		}

		var bare []float64
		end := i + 6
		for j := i + 1; j < len(lines) && j <= end; j++ {
			line := lines[j]
			if nextRank, _, isNext := listRankAt(lines, j, rank); isNext && nextRank > rank {
				break
			}

			if v, labelOnly, okW := labeledWager(line); okW {
				if !labelOnly {
					e.Wager = v
				}
				continue
			}
			if v, labelOnly, okP := labeledPrize(line); okP {
				if !labelOnly {
					e.Prize = v
				}
				continue
			}

			t := strings.TrimSpace(unescapeMD(line))
			if m := embeddedImgRe.FindStringSubmatch(t); m != nil {
				t = strings.TrimSpace(m[1])
			}
			if v, okAmt := ParseAmount(t); okAmt {
				bare = append(bare, v)
				continue
			}
			if e.Username == "" {
				if name, okName := usernameCandidate(line); okName {
					e.Username = name
				}
			}
		}

		assignBareAmounts(&e, bare, hint, strings.Join(lines[i:min(len(lines), end+1)], "\n"))

		if e.Username == "" {
			e.Username = types.HiddenUsername
		}
		if e.Username == types.HiddenUsername && e.Wager == 0 && e.Prize == 0 {
			continue
		}
		entries = append(entries, e)
		lastRank = rank
	}

	if len(entries) == 0 {
		return nil
	}
	return entries
}

// listRankAt recognizes a rank marker at line i. Bare integers are only
// accepted after the podium (rank ≥ 4), in strict sequence, inside a
// Challengers-style context.
func listRankAt(lines []string, i, lastRank int) (rank int, rest string, ok bool) {
	line := lines[i]
	if m := explicitRankRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return n, strings.TrimSpace(m[2]), true
		}
	}
	if m := dottedRankRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return n, strings.TrimSpace(m[2]), true
		}
	}
	if m := bareIntRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n >= 4 && n == lastRank+1 && hasChallengersContext(lines, i) {
			return n, "", true
		}
	}
	return 0, "", false
}

// assignBareAmounts distributes unlabeled amounts onto wager and prize.
// Wager-first is the default; the column-order hint or a prize icon flips
// the first amount to the prize.
func assignBareAmounts(e *types.Entry, bare []float64, hint columnOrder, context string) {
	prizeFirst := hint.known && hint.prizeFirst || prizeIconRe.MatchString(context) && len(bare) == 1 && e.Wager > 0

	for _, v := range bare {
		switch {
		case prizeFirst && e.Prize == 0:
			e.Prize = v
		case e.Wager == 0:
			e.Wager = v
		case e.Prize == 0:
			e.Prize = v
		}
	}
}
