package strategy

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderhound/internal/collect"
	"leaderhound/internal/nettap"
	"leaderhound/internal/types"
)

func jsonResponse(rawURL, body string) nettap.CapturedResponse {
	return nettap.CapturedResponse{
		URL:    rawURL,
		Kind:   nettap.KindJSON,
		Body:   body,
		Period: nettap.ClassifyPeriod(rawURL, body),
	}
}

func TestAPIWrappedEntryArray(t *testing.T) {
	body := `{"status":"ok","data":{"entries":[
		{"username":"alpha","wagered":125000.5,"prize":5000,"rank":1},
		{"username":"beta","wagered":90000,"prize":2500},
		{"username":"Show More","wagered":1}
	]}}`

	out := API(&collect.Capture{Responses: []nettap.CapturedResponse{
		jsonResponse("https://api.example.com/leaderboard", body),
	}})
	require.NotNil(t, out)
	assert.Equal(t, types.SourceAPI, out.Source)
	assert.InDelta(t, 90, out.Confidence, 0.001)
	require.Len(t, out.Entries, 2, "UI-text usernames are skipped")

	assert.Equal(t, "alpha", out.Entries[0].Username)
	assert.Equal(t, 1, out.Entries[0].Rank)
	assert.InDelta(t, 125000.5, out.Entries[0].Wager, 0.001)
	assert.InDelta(t, 5000, out.Entries[0].Prize, 0.001)

	assert.Equal(t, 2, out.Entries[1].Rank, "missing rank falls back to array position")
}

func TestAPIStringAmountsAndAltKeys(t *testing.T) {
	body := `[{"player":"gamma","total_wager":"$12,345.67","payout":"1,000","position":3}]`

	out := API(&collect.Capture{Responses: []nettap.CapturedResponse{
		jsonResponse("https://api.example.com/ranking?period=current", body),
	}})
	require.NotNil(t, out)
	require.Len(t, out.Entries, 1)
	e := out.Entries[0]
	assert.Equal(t, "gamma", e.Username)
	assert.Equal(t, 3, e.Rank)
	assert.InDelta(t, 12345.67, e.Wager, 0.001)
	assert.InDelta(t, 1000, e.Prize, 0.001)
}

func TestAPIPicksLargestArray(t *testing.T) {
	small := jsonResponse("https://x.com/api/top", `[{"username":"only","wager":1}]`)
	big := jsonResponse("https://x.com/api/leaderboard", `[
		{"username":"a","wager":3},{"username":"b","wager":2},{"username":"c","wager":1}
	]`)

	out := API(&collect.Capture{Responses: []nettap.CapturedResponse{small, big}})
	require.NotNil(t, out)
	assert.Len(t, out.Entries, 3)
}

func TestAPIUnionsPaginatedPages(t *testing.T) {
	page1 := jsonResponse("https://api.example.com/leaderboard?page=1&limit=2",
		`[{"username":"a","wager":4,"rank":1},{"username":"b","wager":3,"rank":2}]`)
	page2 := jsonResponse("https://api.example.com/leaderboard?page=2&limit=2",
		`[{"username":"c","wager":2,"rank":3},{"username":"d","wager":1,"rank":4}]`)

	out := API(&collect.Capture{Responses: []nettap.CapturedResponse{page1, page2}})
	require.NotNil(t, out)
	require.Len(t, out.Entries, 4, "fetched pages extend the dataset")
	for i, e := range out.Entries {
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, "d", out.Entries[3].Username)
}

// Overlapping page boundaries must not double-count a user, and rank-less
// pages continue the numbering from the highest rank assigned so far.
func TestAPIPaginationOverlapDedupes(t *testing.T) {
	page1 := jsonResponse("https://api.example.com/leaderboard?page=1&limit=2",
		`[{"username":"a","wager":3},{"username":"b","wager":2}]`)
	page2 := jsonResponse("https://api.example.com/leaderboard?page=2&limit=2",
		`[{"username":"b","wager":2},{"username":"c","wager":1}]`)

	out := API(&collect.Capture{Responses: []nettap.CapturedResponse{page1, page2}})
	require.NotNil(t, out)
	require.Len(t, out.Entries, 3)
	assert.Equal(t, "a", out.Entries[0].Username)
	assert.Equal(t, "b", out.Entries[1].Username)
	assert.Equal(t, "c", out.Entries[2].Username)
	assert.Equal(t, 3, out.Entries[2].Rank)
}

func TestAPIEmbeddedInScript(t *testing.T) {
	js := `window.__LEADERBOARD__ = [{"username":"delta","wagered":700,"prize":90}];`

	out := API(&collect.Capture{Responses: []nettap.CapturedResponse{{
		URL:  "https://x.com/bundle.js",
		Kind: nettap.KindJS,
		Body: js,
	}}})
	require.NotNil(t, out)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "delta", out.Entries[0].Username)
	assert.InDelta(t, 700, out.Entries[0].Wager, 0.001)
}

func TestAPIPreviousPeriodPropagates(t *testing.T) {
	body := `[{"username":"old","wager":10},{"username":"older","wager":5}]`
	out := API(&collect.Capture{Responses: []nettap.CapturedResponse{
		jsonResponse("https://api.example.com/leaderboard/previous", body),
	}})
	require.NotNil(t, out)
	for _, e := range out.Entries {
		assert.Equal(t, types.TypePrevious, e.LeaderboardType)
	}
}

func TestAPINoUsableResponses(t *testing.T) {
	out := API(&collect.Capture{Responses: []nettap.CapturedResponse{
		jsonResponse("https://api.example.com/config", `{"theme":"dark"}`),
	}})
	assert.Nil(t, out)
}

func TestPaginatedAPI(t *testing.T) {
	full := jsonResponse("https://api.example.com/leaderboard?page=1&limit=2",
		`[{"username":"a","wager":2},{"username":"b","wager":1}]`)

	next, ok := PaginatedAPI([]nettap.CapturedResponse{full})
	require.True(t, ok)
	u, err := url.Parse(next)
	require.NoError(t, err)
	assert.Equal(t, "2", u.Query().Get("page"))
	assert.Equal(t, "2", u.Query().Get("limit"))
}

func TestPaginatedAPIShortPageStops(t *testing.T) {
	short := jsonResponse("https://api.example.com/leaderboard?page=3&limit=50",
		`[{"username":"a","wager":2}]`)
	_, ok := PaginatedAPI([]nettap.CapturedResponse{short})
	assert.False(t, ok, "a page shorter than the limit is the last page")
}

func TestPaginatedAPISkipsHistorical(t *testing.T) {
	hist := jsonResponse("https://api.example.com/leaderboard/previous?page=1&limit=1",
		`[{"username":"a","wager":2}]`)
	_, ok := PaginatedAPI([]nettap.CapturedResponse{hist})
	assert.False(t, ok)
}

func TestNextPageURL(t *testing.T) {
	next, ok := NextPageURL("https://x.com/api/lb?page=3&limit=50")
	require.True(t, ok)
	u, err := url.Parse(next)
	require.NoError(t, err)
	assert.Equal(t, "4", u.Query().Get("page"))

	_, ok = NextPageURL("https://x.com/api/lb")
	assert.False(t, ok)
}
