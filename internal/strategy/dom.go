package strategy

import (
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"leaderhound/internal/collect"
	"leaderhound/internal/types"
)

// domRowSelector is the broad container set for the row extraction pass.
const domRowSelector = `[class*="entry"],[class*="row"],[class*="item"],[class*="player"],[class*="card"],[class*="user"],[class*="rank"],[class*="leader"],tr,li`

// domPodiumSelector matches podium cards by class convention.
const domPodiumSelector = `[class*="WinnerCard"],[class*="winner-card"],[class*="podium"],[class*="place-1"],[class*="place-2"],[class*="place-3"],[class*="top-3"]`

// domTextFallbackThreshold: below this many extracted entries the strategy
// re-parses the raw body text.
const domTextFallbackThreshold = 10

// DOM extracts entries from the captured document: podium cards by class
// heuristic and label pattern, then the broad row-container pass, then a
// body-text re-parse when the yield is thin.
func DOM(cap *collect.Capture) *Output {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cap.HTML))
	if err != nil {
		return nil
	}

	var entries []types.Entry
	entries = append(entries, domPodium(doc, cap.Layout)...)
	entries = append(entries, domRows(doc)...)

	if len(entries) < domTextFallbackThreshold && cap.BodyText != "" {
		entries = append(entries, parseTextBlock(cap.BodyText)...)
	}

	entries = dedupeEntries(entries)
	if len(entries) == 0 {
		return nil
	}
	assignSequentialRanks(entries)
	return &Output{Source: types.SourceDOM, Entries: entries, Confidence: 65}
}

// domPodium finds top-3 cards first by class convention and then by the
// label pattern over layout nodes: a bounded rectangle whose text carries
// both a WAGERED and a REWARD/PRIZE label plus at least two money tokens.
func domPodium(doc *goquery.Document, layout []collect.LayoutNode) []types.Entry {
	var entries []types.Entry

	doc.Find(domPodiumSelector).Each(func(i int, sel *goquery.Selection) {
		if len(entries) >= 3 {
			return
		}
		if e, ok := parseRowLines(selectionLines(sel)); ok {
			if e.Rank == 0 {
				e.Rank = len(entries) + 1
			}
			entries = append(entries, e)
		}
	})
	if len(entries) > 0 {
		return entries
	}

	// Pattern pass over layout geometry.
	var cards []collect.LayoutNode
	for _, n := range layout {
		if n.Width < 80 || n.Width > 500 || n.Height < 100 || n.Height > 600 {
			continue
		}
		up := strings.ToUpper(n.Text)
		if !strings.Contains(up, "WAGER") {
			continue
		}
		if !strings.Contains(up, "REWARD") && !strings.Contains(up, "PRIZE") {
			continue
		}
		if len(FindAmounts(n.Text)) < 2 {
			continue
		}
		cards = append(cards, n)
	}
	cards = dropContained(cards)
	sort.Slice(cards, func(i, j int) bool { return cards[i].X < cards[j].X })
	for i, n := range cards {
		if i >= 3 {
			break
		}
		if e, ok := parseRowLines(strings.Split(n.Text, "\n")); ok {
			if e.Rank == 0 {
				e.Rank = i + 1
			}
			entries = append(entries, e)
		}
	}
	return entries
}

// dropContained removes candidates fully containing another candidate.
func dropContained(nodes []collect.LayoutNode) []collect.LayoutNode {
	out := nodes[:0]
	for i, a := range nodes {
		contains := false
		for j, b := range nodes {
			if i == j {
				continue
			}
			if b.X >= a.X && b.Y >= a.Y && b.X+b.Width <= a.X+a.Width && b.Y+b.Height <= a.Y+a.Height {
				contains = true
				break
			}
		}
		if !contains {
			out = append(out, a)
		}
	}
	return out
}

// domRows runs the row state machine over every broad container match,
// preferring leaf containers so nested matches do not double-count.
func domRows(doc *goquery.Document) []types.Entry {
	var entries []types.Entry
	doc.Find(domRowSelector).Each(func(i int, sel *goquery.Selection) {
		// Skip wrappers that contain further row candidates.
		if sel.Find(domRowSelector).Length() > 0 {
			return
		}
		if e, ok := parseRowLines(selectionLines(sel)); ok {
			entries = append(entries, e)
		}
	})
	return entries
}

// selectionLines walks the selection's text nodes, yielding one line per
// text node the way innerText would split block children.
func selectionLines(sel *goquery.Selection) []string {
	var lines []string
	for _, node := range sel.Nodes {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.TextNode {
				if t := strings.TrimSpace(n.Data); t != "" {
					lines = append(lines, t)
				}
				return
			}
			if n.Type == html.ElementNode {
				switch n.Data {
				case "script", "style", "svg", "noscript":
					return
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(node)
	}
	return lines
}

// rowParser is the line-level label state machine shared by the DOM and
// geometric strategies. A WAGERED/PRIZE label may precede its value (the
// next numeric belongs to it) or follow it (the last unlabeled amount is
// promoted).
type rowParser struct {
	entry   types.Entry
	pending []float64
	next    int // 0 none, 1 wager, 2 prize
	labeled bool
}

func parseRowLines(lines []string) (types.Entry, bool) {
	p := rowParser{entry: types.Entry{ExtractedAt: time.Now(), LeaderboardType: types.TypeCurrent}}
	for _, line := range lines {
		for _, sub := range strings.Split(line, "\n") {
			p.feed(sub)
		}
	}
	return p.finish()
}

func (p *rowParser) feed(line string) {
	t := strings.TrimSpace(line)
	if t == "" {
		return
	}
	up := strings.ToUpper(t)

	if isWagerLabel(up) {
		p.labeled = true
		if vals := FindAmounts(t); len(vals) > 0 {
			p.entry.Wager = vals[0]
			return
		}
		if n := len(p.pending); n > 0 && p.entry.Wager == 0 {
			p.entry.Wager = p.pending[n-1]
			p.pending = p.pending[:n-1]
			return
		}
		p.next = 1
		return
	}
	if isPrizeLabel(up) {
		p.labeled = true
		if vals := FindAmounts(t); len(vals) > 0 {
			p.entry.Prize = vals[0]
			return
		}
		if n := len(p.pending); n > 0 && p.entry.Prize == 0 {
			p.entry.Prize = p.pending[n-1]
			p.pending = p.pending[:n-1]
			return
		}
		p.next = 2
		return
	}

	if p.entry.Rank == 0 && p.entry.Username == "" && len(p.pending) == 0 && p.next == 0 {
		if r := ParseRank(t); r > 0 && r <= 1000 && !strings.ContainsAny(t, "$€£¥.,") {
			p.entry.Rank = r
			return
		}
		// "#04." style markers carry separators; still a rank.
		if strings.HasPrefix(t, "#") {
			if r := ParseRank(t); r > 0 {
				p.entry.Rank = r
				return
			}
		}
	}

	if isAmountLine(t) {
		if vals := FindAmounts(t); len(vals) > 0 {
			v := vals[0]
			switch p.next {
			case 1:
				p.entry.Wager = v
			case 2:
				p.entry.Prize = v
			default:
				p.pending = append(p.pending, v)
			}
			p.next = 0
			return
		}
	}

	if p.entry.Username == "" {
		name := CleanMarkdownUsername(t)
		if name != types.HiddenUsername && ValidUsername(name) {
			p.entry.Username = name
		}
	}
}

func (p *rowParser) finish() (types.Entry, bool) {
	if !p.labeled && len(p.pending) > 0 {
		// No labels at all: largest amount is the wager, second the prize.
		sorted := append([]float64(nil), p.pending...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		p.entry.Wager = sorted[0]
		if len(sorted) > 1 {
			p.entry.Prize = sorted[1]
		}
	} else {
		for _, v := range p.pending {
			switch {
			case p.entry.Wager == 0:
				p.entry.Wager = v
			case p.entry.Prize == 0:
				p.entry.Prize = v
			}
		}
	}

	if p.entry.Username == "" {
		return p.entry, false
	}
	if p.entry.Wager == 0 && p.entry.Prize == 0 && p.entry.Rank == 0 {
		return p.entry, false
	}
	return p.entry, true
}

func isWagerLabel(up string) bool {
	return up == "WAGERED" || up == "WAGER" || strings.HasPrefix(up, "WAGERED:") || strings.HasPrefix(up, "WAGER:") ||
		strings.HasPrefix(up, "WAGERED ") && len(FindAmounts(up)) > 0
}

func isPrizeLabel(up string) bool {
	for _, l := range []string{"PRIZE", "REWARD", "BONUS", "PAYOUT", "WINNINGS"} {
		if up == l || strings.HasPrefix(up, l+":") || strings.HasPrefix(up, l+" ") && len(FindAmounts(up)) > 0 {
			return true
		}
	}
	return false
}

// isAmountLine accepts lines that are substantially one money token.
func isAmountLine(t string) bool {
	clean := strings.TrimSpace(unescapeMD(t))
	if _, ok := ParseAmount(clean); ok {
		return true
	}
	// Currency symbol plus token, e.g. "$ 1,234.56 USD".
	if currencyStripRe.MatchString(clean) && len(FindAmounts(clean)) > 0 {
		return true
	}
	return false
}

// parseTextBlock re-parses raw body text line by line, splitting into
// per-entry chunks at rank markers and podium label sequences.
func parseTextBlock(text string) []types.Entry {
	lines := strings.Split(text, "\n")
	var entries []types.Entry

	var chunk []string
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		if e, ok := parseRowLines(chunk); ok {
			entries = append(entries, e)
		}
		chunk = nil
	}

	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if r := ParseRank(t); r > 0 && !strings.ContainsAny(t, "$€£¥") {
			// New entry boundary.
			flush()
		} else if up := strings.ToUpper(t); isWagerLabel(up) && len(chunk) > 4 {
			// Podium-style blocks: a fresh WAGERED label far from the
			// chunk head starts a new card.
			tail := chunk[len(chunk)-2:]
			flush()
			chunk = tail
		}
		chunk = append(chunk, t)
	}
	flush()
	return entries
}

func dedupeEntries(entries []types.Entry) []types.Entry {
	type key struct {
		name string
		rank int
	}
	seen := make(map[key]int)
	out := make([]types.Entry, 0, len(entries))
	for _, e := range entries {
		k := key{strings.ToLower(e.Username), e.Rank}
		if idx, ok := seen[k]; ok {
			// Keep the richer duplicate.
			if fieldCount(e) > fieldCount(out[idx]) {
				out[idx] = e
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, e)
	}
	return out
}

func fieldCount(e types.Entry) int {
	n := 0
	if e.Rank > 0 {
		n++
	}
	if e.Wager > 0 {
		n++
	}
	if e.Prize > 0 {
		n++
	}
	return n
}

// assignSequentialRanks fills missing ranks after the explicitly ranked
// entries, preserving extraction order.
func assignSequentialRanks(entries []types.Entry) {
	used := make(map[int]bool)
	maxRank := 0
	for _, e := range entries {
		if e.Rank > 0 {
			used[e.Rank] = true
			if e.Rank > maxRank {
				maxRank = e.Rank
			}
		}
	}
	next := maxRank + 1
	for i := range entries {
		if entries[i].Rank == 0 {
			for used[next] {
				next++
			}
			entries[i].Rank = next
			used[next] = true
		}
	}
}
