package refine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderhound/internal/types"
)

func entry(rank int, name string, wager, prize float64) types.Entry {
	return types.Entry{Rank: rank, Username: name, Wager: wager, Prize: prize}
}

func TestSanitizeRejectsInvalidRows(t *testing.T) {
	s := &Sanitizer{Domain: "stake.com"}
	in := []types.Entry{
		entry(1, "alpha", 50000, 5000),
		entry(2, "Show More", 100, 0),          // UI text
		entry(3, "stake.com", 90, 0),           // site's own name
		entry(4, types.HiddenUsername, 0, 0),   // hidden with nothing else
		entry(5, "beta", -5, 0),                // negative wager
		entry(6, "gamma", math.NaN(), 0),       // NaN wager
		entry(7, types.HiddenUsername, 800, 0), // hidden but carries a wager
	}

	clean, _ := s.Sanitize(in)
	require.Len(t, clean, 2)
	assert.Equal(t, "alpha", clean[0].Username)
	assert.Equal(t, types.HiddenUsername, clean[1].Username)
}

func TestSanitizeWebsiteNameForms(t *testing.T) {
	s := &Sanitizer{SiteNames: []string{"CasinoRoyale"}, Domain: "www.stake.com"}
	assert.True(t, s.isWebsiteName("casinoroyale"))
	assert.True(t, s.isWebsiteName("stake.com"))
	assert.True(t, s.isWebsiteName("stake"))
	assert.True(t, s.isWebsiteName("stake.us"))
	assert.False(t, s.isWebsiteName("stakeholder"))
	assert.False(t, s.isWebsiteName("someone@stake.com"), "email-shaped strings are exempt")
}

func TestSanitizeDropsAggregateRows(t *testing.T) {
	s := &Sanitizer{}
	in := []types.Entry{
		entry(0, "Total Wagered", 90000, 0),
		entry(1, "alpha", 50000, 0),
		entry(2, "beta", 40000, 0),
		entry(3, "7 days", 0, 0),
	}

	clean, _ := s.Sanitize(in)
	require.Len(t, clean, 2)
	assert.Equal(t, "alpha", clean[0].Username)
	assert.Equal(t, "beta", clean[1].Username)
}

// A wager equal to the sum of all others is a totals row even when the
// username looks legitimate.
func TestSanitizeDropsSumRow(t *testing.T) {
	s := &Sanitizer{}
	in := []types.Entry{
		entry(1, "alpha", 50000, 0),
		entry(2, "beta", 40000, 0),
		entry(3, "summary", 90000, 0),
	}
	clean, _ := s.Sanitize(in)
	require.Len(t, clean, 2)
	for _, e := range clean {
		assert.NotEqual(t, "summary", e.Username)
	}
}

// A 10x outlier is flagged but never removed.
func TestSanitizeFlagsOutlierWager(t *testing.T) {
	s := &Sanitizer{}
	in := []types.Entry{
		entry(1, "whale", 1000000, 0),
		entry(2, "alpha", 50000, 0),
		entry(3, "beta", 40000, 0),
	}
	clean, warnings := s.Sanitize(in)
	assert.Len(t, clean, 3)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "10x")
}

func TestNormalize(t *testing.T) {
	in := []types.Entry{
		entry(3, "  gamma  ", 100, 0),
		entry(1, "alpha", 300, 50),
		{Rank: -2, Username: "", Wager: math.Inf(1), Prize: -1},
		entry(2, "beta", 200, 25),
	}

	out := Normalize(in, types.TypeCurrent)
	require.Len(t, out, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, ranksOf(out))

	assert.Equal(t, "alpha", out[0].Username)
	assert.Equal(t, "gamma", out[2].Username, "whitespace trimmed")

	// The rank-less invalid row sorts last and takes the next free rank.
	assert.Equal(t, types.HiddenUsername, out[3].Username)
	assert.Zero(t, out[3].Wager)
	assert.Zero(t, out[3].Prize)
	assert.Equal(t, types.TypeCurrent, out[3].LeaderboardType)
	assert.False(t, out[3].ExtractedAt.IsZero())
}

// Rank 0 is forbidden in emitted results: fusion of rank-less sources and
// advisor corrections arrive unranked and must leave with sequential ranks.
func TestNormalizeAssignsMissingRanks(t *testing.T) {
	in := []types.Entry{
		{Username: "Alice", Wager: 900},
		{Username: "Bob", Wager: 500},
	}
	out := Normalize(in, types.TypeCurrent)
	require.Len(t, out, 2)
	assert.Equal(t, []int{1, 2}, ranksOf(out))
	assert.Equal(t, "Alice", out[0].Username)
	assert.Equal(t, "Bob", out[1].Username)
}

func TestNormalizeResolvesDuplicateRanks(t *testing.T) {
	in := []types.Entry{
		entry(1, "alpha", 300, 0),
		entry(1, "beta", 200, 0),
		entry(2, "gamma", 100, 0),
	}
	out := Normalize(in, types.TypeCurrent)
	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 2, 3}, ranksOf(out))
	assert.Equal(t, "beta", out[1].Username, "tied ranks keep their relative order")
}

func TestNormalizeKeepsExistingTimestamps(t *testing.T) {
	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	in := []types.Entry{{Rank: 1, Username: "a", ExtractedAt: ts, LeaderboardType: types.TypePrevious}}
	out := Normalize(in, types.TypeCurrent)
	assert.Equal(t, ts, out[0].ExtractedAt)
	assert.Equal(t, types.TypePrevious, out[0].LeaderboardType)
}

func TestTotals(t *testing.T) {
	w, p := Totals([]types.Entry{entry(1, "a", 100, 10), entry(2, "b", 50, 5)})
	assert.InDelta(t, 150, w, 0.001)
	assert.InDelta(t, 15, p, 0.001)
}

func ranksOf(entries []types.Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Rank
	}
	return out
}
