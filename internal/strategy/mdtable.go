package strategy

import (
	"regexp"
	"strings"

	"leaderhound/internal/types"
)

var headerCellRe = regexp.MustCompile(`(?i)^(rank|#|pos(ition)?|place|player|user(name)?|name|wager(ed)?|amount|prize|reward|bonus|winnings)s?$`)

// table column roles.
const (
	colIgnore = iota
	colRank
	colUser
	colWager
	colPrize
)

// parseTables extracts entries from pipe-delimited tables. A header row is
// recognized when at least two cells match the known column names; without
// a header, columns map positionally as Rank | Player | Wagered | Prize.
func parseTables(lines []string) []types.Entry {
	var entries []types.Entry

	i := 0
	for i < len(lines) {
		if !isTableRow(lines[i]) {
			i++
			continue
		}

		// Collect the contiguous table block.
		start := i
		for i < len(lines) && (isTableRow(lines[i]) || isSeparatorLine(lines[i]) && strings.Contains(lines[i], "|")) {
			i++
		}
		block := lines[start:i]
		entries = append(entries, parseTableBlock(block)...)
	}
	return entries
}

func isTableRow(line string) bool {
	t := strings.TrimSpace(line)
	return strings.Count(t, "|") >= 2 && !separatorLineRe.MatchString(t)
}

func parseTableBlock(block []string) []types.Entry {
	roles, bodyStart := tableRoles(block)

	var entries []types.Entry
	for _, line := range block[bodyStart:] {
		if !isTableRow(line) {
			continue
		}
		cells := splitCells(line)
		e := newMarkdownEntry()
		var bare []float64
		for ci, cell := range cells {
			role := colIgnore
			if ci < len(roles) {
				role = roles[ci]
			}
			cell = strings.TrimSpace(unescapeMD(cell))
			switch role {
			case colRank:
				e.Rank = ParseRank(cell)
			case colUser:
				name := CleanMarkdownUsername(cell)
				if ValidUsername(name) {
					e.Username = name
				}
			case colWager:
				if v, ok := ParseAmount(cell); ok {
					e.Wager = v
				}
			case colPrize:
				if v, ok := ParseAmount(cell); ok {
					e.Prize = v
				}
			default:
				if v, ok := ParseAmount(cell); ok {
					bare = append(bare, v)
				}
			}
		}
		// A row with no mapped columns at all is not an entry.
		if e.Username == "" {
			continue
		}
		// Unlabeled extra amounts: first fills wager, second prize.
		for _, v := range bare {
			switch {
			case e.Wager == 0:
				e.Wager = v
			case e.Prize == 0:
				e.Prize = v
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// tableRoles maps each column to a role from the header row, or applies the
// positional default when no header is present. Returns the roles and the
// index of the first body row within the block.
func tableRoles(block []string) ([]int, int) {
	for idx, line := range block {
		if !isTableRow(line) {
			continue
		}
		cells := splitCells(line)
		matched := 0
		roles := make([]int, len(cells))
		taken := make(map[int]bool)
		for ci, cell := range cells {
			role := headerRole(strings.TrimSpace(cell))
			if role != colIgnore {
				matched++
				if !taken[role] {
					roles[ci] = role
					taken[role] = true
				}
			}
		}
		if matched >= 2 {
			return roles, idx + 1
		}
		// First row is data: positional mapping.
		return []int{colRank, colUser, colWager, colPrize}, idx
	}
	return nil, len(block)
}

func headerRole(cell string) int {
	if !headerCellRe.MatchString(cell) {
		return colIgnore
	}
	switch l := strings.ToLower(cell); {
	case l == "#" || strings.HasPrefix(l, "rank") || strings.HasPrefix(l, "pos") || strings.HasPrefix(l, "place"):
		return colRank
	case strings.HasPrefix(l, "player") || strings.HasPrefix(l, "user") || strings.HasPrefix(l, "name"):
		return colUser
	case strings.HasPrefix(l, "wager") || strings.HasPrefix(l, "amount"):
		return colWager
	default:
		return colPrize
	}
}

func splitCells(line string) []string {
	t := strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(t, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
