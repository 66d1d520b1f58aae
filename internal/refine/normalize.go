package refine

import (
	"math"
	"sort"
	"strings"
	"time"

	"leaderhound/internal/types"
)

// Normalize coerces entries onto the canonical schema and sorts them by
// rank ascending, rank-less entries last. Entries keep their relative order
// when ranks tie. Rank 0 never survives: unranked entries take the next
// free positions and duplicate ranks shift down.
func Normalize(entries []types.Entry, period types.LeaderboardType) []types.Entry {
	now := time.Now()
	out := make([]types.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Rank < 0 {
			e.Rank = 0
		}
		e.Username = strings.TrimSpace(e.Username)
		if e.Username == "" {
			e.Username = types.HiddenUsername
		}
		e.Wager = normalizeAmount(e.Wager)
		e.Prize = normalizeAmount(e.Prize)
		if e.ExtractedAt.IsZero() {
			e.ExtractedAt = now
		}
		if e.LeaderboardType == "" {
			e.LeaderboardType = period
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool { return sortRank(out[i].Rank) < sortRank(out[j].Rank) })

	prev := 0
	for i := range out {
		if out[i].Rank <= prev {
			out[i].Rank = prev + 1
		}
		prev = out[i].Rank
	}
	return out
}

// sortRank orders rank-less entries after every ranked one.
func sortRank(r int) int {
	if r <= 0 {
		return math.MaxInt32
	}
	return r
}

func normalizeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Totals sums the wagers and prizes of a normalized entry list.
func Totals(entries []types.Entry) (wagered, prizePool float64) {
	for _, e := range entries {
		wagered += e.Wager
		prizePool += e.Prize
	}
	return wagered, prizePool
}
