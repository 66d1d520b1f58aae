package strategy

import (
	"sort"
	"strings"

	"leaderhound/internal/collect"
	"leaderhound/internal/types"
)

// Geometric clusters visible blocks by size and alignment: repeated
// same-sized, left-aligned blocks form the list, and a small group of
// larger cards above it forms the podium. Text inside each block goes
// through the same row state machine as the DOM strategy.
func Geometric(cap *collect.Capture) *Output {
	blocks := filterBlocks(cap.Layout, cap.ViewportWidth)
	if len(blocks) == 0 {
		return nil
	}

	groups := groupBySize(blocks)
	list := pickListGroup(groups)
	if list == nil {
		return nil
	}

	var entries []types.Entry
	for _, n := range podiumGroup(groups, list) {
		if e, ok := parseRowLines(strings.Split(n.Text, "\n")); ok {
			entries = append(entries, e)
		}
	}
	podiumCount := len(entries)
	for i := range entries {
		if entries[i].Rank == 0 {
			entries[i].Rank = i + 1
		}
	}

	for _, n := range list {
		if e, ok := parseRowLines(strings.Split(n.Text, "\n")); ok {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return nil
	}

	// List rows without an explicit rank continue after the podium.
	next := podiumCount + 1
	for i := podiumCount; i < len(entries); i++ {
		if entries[i].Rank == 0 {
			entries[i].Rank = next
		}
		next = entries[i].Rank + 1
	}

	entries = dedupeEntries(entries)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	return &Output{Source: types.SourceGeometric, Entries: entries, Confidence: 50}
}

// filterBlocks drops blocks too small to be a row or so wide they are the
// page shell rather than content.
func filterBlocks(layout []collect.LayoutNode, viewportWidth float64) []collect.LayoutNode {
	var out []collect.LayoutNode
	for _, n := range layout {
		if n.Width < 50 || n.Height < 20 {
			continue
		}
		if viewportWidth > 0 && n.Width > viewportWidth*0.95 {
			continue
		}
		if strings.TrimSpace(n.Text) == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// sizeTolerance is the relative width/height slack for two blocks to share
// a size group.
const sizeTolerance = 0.15

func sameSize(a, b collect.LayoutNode) bool {
	return within(a.Width, b.Width, sizeTolerance) && within(a.Height, b.Height, sizeTolerance)
}

func within(a, b, tol float64) bool {
	ref := a
	if b > ref {
		ref = b
	}
	if ref == 0 {
		return true
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d/ref <= tol
}

func groupBySize(blocks []collect.LayoutNode) [][]collect.LayoutNode {
	var groups [][]collect.LayoutNode
	for _, n := range blocks {
		placed := false
		for gi, g := range groups {
			if sameSize(n, g[0]) {
				groups[gi] = append(g, n)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []collect.LayoutNode{n})
		}
	}
	return groups
}

// pickListGroup selects the leaderboard list: at least five blocks sharing
// a left edge within 10px. Among candidates the topmost one wins, so a
// stats strip below the board does not shadow it.
func pickListGroup(groups [][]collect.LayoutNode) []collect.LayoutNode {
	var best []collect.LayoutNode
	bestTop := 0.0
	for _, g := range groups {
		aligned := alignedRun(g)
		if len(aligned) < 5 {
			continue
		}
		top := aligned[0].Y
		for _, n := range aligned[1:] {
			if n.Y < top {
				top = n.Y
			}
		}
		if best == nil || top < bestTop {
			best, bestTop = aligned, top
		}
	}
	if best != nil {
		sort.Slice(best, func(i, j int) bool { return best[i].Y < best[j].Y })
	}
	return best
}

// alignedRun returns the largest subset of a size group sharing a left
// edge within 10px.
func alignedRun(g []collect.LayoutNode) []collect.LayoutNode {
	var best []collect.LayoutNode
	for _, anchor := range g {
		var run []collect.LayoutNode
		for _, n := range g {
			d := n.X - anchor.X
			if d < 0 {
				d = -d
			}
			if d <= 10 {
				run = append(run, n)
			}
		}
		if len(run) > len(best) {
			best = run
		}
	}
	return best
}

// podiumGroup looks for 2..4 blocks above the list whose average area is at
// least 1.2x the list's median block area, ordered left to right.
func podiumGroup(groups [][]collect.LayoutNode, list []collect.LayoutNode) []collect.LayoutNode {
	listTop := list[0].Y
	median := medianArea(list)

	var best []collect.LayoutNode
	for _, g := range groups {
		if len(g) < 2 || len(g) > 4 {
			continue
		}
		if sameGroup(g, list) {
			continue
		}
		above := true
		total := 0.0
		for _, n := range g {
			if n.Y+n.Height > listTop {
				above = false
				break
			}
			total += n.Width * n.Height
		}
		if !above {
			continue
		}
		if total/float64(len(g)) < median*1.2 {
			continue
		}
		if best == nil || len(g) > len(best) {
			best = g
		}
	}
	if best != nil {
		sort.Slice(best, func(i, j int) bool { return best[i].X < best[j].X })
	}
	return best
}

// sameGroup reports whether the candidate group contains the list's first
// block, meaning both views come from the same size cluster.
func sameGroup(g, list []collect.LayoutNode) bool {
	if len(list) == 0 {
		return false
	}
	for _, n := range g {
		if n == list[0] {
			return true
		}
	}
	return false
}

func medianArea(blocks []collect.LayoutNode) float64 {
	areas := make([]float64, len(blocks))
	for i, n := range blocks {
		areas[i] = n.Width * n.Height
	}
	sort.Float64s(areas)
	return areas[len(areas)/2]
}
