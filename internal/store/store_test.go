package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderhound/internal/types"
)

func testRun() *types.SiteRun {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.SiteRun{
		Domain:       "example.com",
		ExtractionID: "ex-1",
		StartedAt:    now.Add(-time.Minute),
		CompletedAt:  now,
		Results: []types.LeaderboardResult{
			{
				Name:           "hypedrop",
				Type:           types.TypeCurrent,
				Source:         types.SourceAPI,
				Confidence:     82,
				TotalWagered:   30000,
				TotalPrizePool: 1500,
				ScrapedAt:      now,
				Validation:     types.Validation{Valid: true},
				Entries: []types.Entry{
					{Rank: 1, Username: "Alpha", Wager: 20000, Prize: 1000},
					{Rank: 2, Username: "Beta", Wager: 10000, Prize: 500},
				},
			},
		},
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "lb.db"))
	require.NoError(t, err)
	defer s.Close()

	run := testRun()
	require.NoError(t, s.SaveRun(run))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM leaderboard_entries`).Scan(&count))
	assert.Equal(t, 2, count)

	var username string
	var wager float64
	require.NoError(t, s.db.QueryRow(
		`SELECT username, wager FROM leaderboard_entries WHERE rank = 1`).Scan(&username, &wager))
	assert.Equal(t, "Alpha", username)
	assert.InDelta(t, 20000, wager, 0.001)

	at, err := s.LastScraped("example.com")
	require.NoError(t, err)
	assert.False(t, at.IsZero())
}

func TestSaveRunReusesCycle(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "lb.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveRun(testRun()))
	require.NoError(t, s.SaveRun(testRun()))

	var cycles, snapshots int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM leaderboard_cycles`).Scan(&cycles))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM leaderboard_snapshots`).Scan(&snapshots))
	assert.Equal(t, 1, cycles)
	assert.Equal(t, 2, snapshots)
}

func TestRecordFailureCounts(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "lb.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RecordFailure("down.com"))
	require.NoError(t, s.RecordFailure("down.com"))

	var count int
	require.NoError(t, s.db.QueryRow(
		`SELECT error_count FROM leaderboard_sites WHERE domain = 'down.com'`).Scan(&count))
	assert.Equal(t, 2, count)

	// A successful save resets the counter.
	run := testRun()
	run.Domain = "down.com"
	require.NoError(t, s.SaveRun(run))
	require.NoError(t, s.db.QueryRow(
		`SELECT error_count FROM leaderboard_sites WHERE domain = 'down.com'`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestLastScrapedUnknownDomain(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "lb.db"))
	require.NoError(t, err)
	defer s.Close()

	at, err := s.LastScraped("never-seen.com")
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestSanitizeUsername(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Alpha", "Alpha"},
		{"Al\x00pha\x1f", "Alpha"},
		{"tab\tname", "tabname"},
		{"", "unknown"},
		{"\x01\x02", "unknown"},
		{`bad\x41name`, "unknown"},
		{`bad\u0041name`, "unknown"},
		{`back\slash`, `back\slash`},
		{"日本語プレイヤー", "日本語プレイヤー"},
		{"  padded  ", "padded"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SanitizeUsername(c.in), "input %q", c.in)
	}
}

func TestSanitizeUsernameTruncates(t *testing.T) {
	long := make([]rune, 150)
	for i := range long {
		long[i] = 'a'
	}
	out := SanitizeUsername(string(long))
	assert.Len(t, []rune(out), 100)
}

func TestSanitizeUsernameDropsInvalidUTF8(t *testing.T) {
	out := SanitizeUsername("Al\xed\xa0\x80pha")
	assert.Equal(t, "Alpha", out)
}

func TestWriteSnapshot(t *testing.T) {
	base := t.TempDir()
	run := testRun()

	path, err := WriteSnapshot(base, run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "results", "current", "example.com.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got types.SiteRun
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "example.com", got.Domain)
	require.Len(t, got.Results, 1)
	assert.Len(t, got.Results[0].Entries, 2)
}

func TestCleanupDebugLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	fresh := filepath.Join(dir, "fresh.log")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	stale := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	require.NoError(t, CleanupDebugLogs(dir, 48*time.Hour))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestCleanupDebugLogsMissingDir(t *testing.T) {
	require.NoError(t, CleanupDebugLogs(filepath.Join(t.TempDir(), "nope"), 0))
}
