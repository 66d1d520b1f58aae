package strategy

import (
	"strings"

	"leaderhound/internal/types"
)

// podiumLookback is how many lines above a Wagered label the username may
// sit, past avatars and separators.
const podiumLookback = 8

// parsePodium detects the top-3 podium rendered as "username / Wagered: $X
// / $Y" blocks. The username is the nearest plausible line above the label;
// the prize is an explicit "Prize:" line or the first bare amount below,
// filtered so rank numbers are not mistaken for prizes.
func parsePodium(lines []string, hint columnOrder) []types.Entry {
	var entries []types.Entry

	for i := 0; i < len(lines) && len(entries) < 3; i++ {
		wager, labelOnly, ok := labeledWager(lines[i])
		if !ok {
			continue
		}

		amountLine := i
		if labelOnly {
			// Label-then-amount layout: the value is on a following line.
			found := false
			for j := i + 1; j < len(lines) && j <= i+2; j++ {
				t := strings.TrimSpace(unescapeMD(lines[j]))
				if v, okAmt := ParseAmount(t); okAmt {
					wager, amountLine, found = v, j, true
					break
				}
			}
			if !found {
				continue
			}
		}

		name := lookbackUsername(lines, i)
		if name == "" {
			continue
		}

		e := newMarkdownEntry()
		e.Username = name
		e.Wager = wager
		e.Rank = len(entries) + 1
		e.Prize = lookforwardPrize(lines, amountLine, hint)
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil
	}
	return entries
}

// lookbackUsername scans up to podiumLookback lines above the label for the
// nearest plausible username, skipping separators, images, and amounts.
func lookbackUsername(lines []string, labelIdx int) string {
	for j := labelIdx - 1; j >= 0 && j >= labelIdx-podiumLookback; j-- {
		if name, ok := usernameCandidate(lines[j]); ok {
			return name
		}
	}
	return ""
}

// lookforwardPrize scans below the wager for an explicit "Prize:" label or
// a bare amount. Bare values that look like rank numbers are rejected
// unless the column-order hint or a prize icon vouches for them.
func lookforwardPrize(lines []string, amountLine int, hint columnOrder) float64 {
	for j := amountLine + 1; j < len(lines) && j <= amountLine+4; j++ {
		line := lines[j]

		// Stop at the next podium block.
		if _, _, isWager := labeledWager(line); isWager {
			return 0
		}

		if v, labelOnly, ok := labeledPrize(line); ok && !labelOnly {
			return v
		}

		t := strings.TrimSpace(unescapeMD(line))
		if v, ok := ParseAmount(t); ok {
			if IsRankLike(v) && !hint.prizeFirst && !prizeIconRe.MatchString(line) {
				continue
			}
			return v
		}
	}
	return 0
}

// Some sites label the remainder of the list "Challengers"; bare sequential
// ranks after the podium are only trusted inside that context.
var challengersContext = []string{"challengers", "challenger", "runners up", "runner-ups"}

func hasChallengersContext(lines []string, idx int) bool {
	for j := idx; j >= 0 && j >= idx-20; j-- {
		l := strings.ToLower(lines[j])
		for _, c := range challengersContext {
			if strings.Contains(l, c) {
				return true
			}
		}
	}
	return false
}
