package strategy

import (
	"regexp"
	"strconv"
	"strings"

	"leaderhound/internal/types"
)

var (
	h3Re          = regexp.MustCompile(`^###\s+(.+)$`)
	positionBadge = regexp.MustCompile(`^\s*([1-9]|10)\s*$`)
	tierLineRe    = regexp.MustCompile(`(?i)^(bronze|silver|gold|platinum|diamond|elite|vip|legend)\b`)
)

// headerBlockWindow is how many lines after a "### username" heading the
// parser scans for wager, prize, and points.
const headerBlockWindow = 8

// parseHeaderBlocks handles sites that render each entry as a "### username"
// heading followed by its fields. A bare 1..10 on its own line directly
// above the heading is a position badge.
func parseHeaderBlocks(lines []string) []types.Entry {
	var entries []types.Entry
	seq := 0

	for i := 0; i < len(lines); i++ {
		m := h3Re.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		raw := strings.TrimSpace(m[1])
		name := CleanMarkdownUsername(raw)
		if name == types.HiddenUsername || !ValidUsername(name) {
			continue
		}
		if IsUIText(name) && !strings.Contains(name, "*") {
			continue
		}

		e := newMarkdownEntry()
		e.Username = name

		// Preceding position badge.
		for j := i - 1; j >= 0 && j >= i-2; j-- {
			if isSeparatorLine(lines[j]) || isImageOnlyLine(lines[j]) {
				continue
			}
			if b := positionBadge.FindStringSubmatch(lines[j]); b != nil {
				n, _ := strconv.Atoi(b[1])
				e.Rank = n
			}
			break
		}

		for j := i + 1; j < len(lines) && j <= i+headerBlockWindow; j++ {
			line := lines[j]
			if h3Re.MatchString(line) {
				break
			}
			if v, labelOnly, ok := labeledWager(line); ok && !labelOnly {
				e.Wager = v
				continue
			}
			if v, labelOnly, ok := labeledPrize(line); ok && !labelOnly {
				e.Prize = v
				continue
			}
			t := strings.TrimSpace(unescapeMD(line))
			if pm := pointsSuffixRe.FindStringSubmatch(t); pm != nil {
				if v, ok := ParseAmount(pm[1]); ok && e.Wager == 0 {
					e.Wager = v
				}
				continue
			}
			if tierLineRe.MatchString(t) {
				continue
			}
		}

		if e.Wager == 0 && e.Prize == 0 {
			continue
		}
		seq++
		if e.Rank == 0 {
			e.Rank = seq
		}
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil
	}
	return entries
}
