package nettap

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderhound/internal/types"
)

func TestClassifyPeriod(t *testing.T) {
	cases := []struct {
		url, body string
		want      types.LeaderboardType
	}{
		{"https://x.com/api/leaderboard", "", types.TypeCurrent},
		{"https://x.com/api/leaderboard/previous", "", types.TypePrevious},
		{"https://x.com/api/lb-history", "", types.TypePrevious},
		{"https://x.com/api/archive/2024", "", types.TypePrevious},
		{"https://x.com/api/lb", `{"ended":true,"entries":[]}`, types.TypePrevious},
		{"https://x.com/api/lb", `{"status": "completed"}`, types.TypePrevious},
		{"https://x.com/api/lb", `{"status":"active"}`, types.TypeCurrent},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyPeriod(c.url, c.body), "url %s", c.url)
	}
}

func TestLeaderboardShapedURL(t *testing.T) {
	assert.True(t, LeaderboardShapedURL("https://x.com/api/v2/users"))
	assert.True(t, LeaderboardShapedURL("https://x.com/Leaderboard/weekly"))
	assert.True(t, LeaderboardShapedURL("https://x.com/rankings"))
	assert.False(t, LeaderboardShapedURL("https://x.com/assets/logo.png"))
}

func TestLooksLikeLeaderboardJSON(t *testing.T) {
	assert.True(t, LooksLikeLeaderboardJSON(`[{"username":"a","wager":100}]`))
	assert.True(t, LooksLikeLeaderboardJSON(`{"data":{"entries":[{"name":"a","score":"1,200"}]}}`))
	assert.False(t, LooksLikeLeaderboardJSON(`[{"foo":"bar"}]`))
	assert.False(t, LooksLikeLeaderboardJSON(`{"username":"a"}`))
	assert.False(t, LooksLikeLeaderboardJSON(`not json`))
}

func TestFirstEntryArrayFindsNestedArray(t *testing.T) {
	var v any = map[string]any{
		"meta": map[string]any{"page": float64(1)},
		"data": map[string]any{
			"entries": []any{
				map[string]any{"username": "a", "wager": float64(100)},
				map[string]any{"username": "b", "wager": float64(50)},
			},
		},
	}
	arr := FirstEntryArray(v)
	require.Len(t, arr, 2)
	assert.Equal(t, "a", arr[0]["username"])
}

// Two candidate arrays under different keys must always resolve to the
// same one, regardless of map iteration order.
func TestFirstEntryArrayDeterministicAcrossKeys(t *testing.T) {
	doc := `{"zeta":[{"username":"z","wager":1}],"alpha":[{"username":"a","wager":2}]}`
	var v any
	require.NoError(t, json.Unmarshal([]byte(doc), &v))

	for i := 0; i < 20; i++ {
		arr := FirstEntryArray(v)
		require.Len(t, arr, 1)
		assert.Equal(t, "a", arr[0]["username"])
	}
}

func TestFirstEntryArrayRejectsMixedArray(t *testing.T) {
	var v any = []any{map[string]any{"username": "a", "wager": float64(1)}, "stray"}
	assert.Nil(t, FirstEntryArray(v))
}

func TestExtractJSONFromJS(t *testing.T) {
	body := `
		window.__LEADERBOARD__ = [{"username":"a","wager":100}];
		const rows = [{"username":"b","wager":50}];
		init(JSON.parse('[{"username":"c","wager":25}]'));
	`
	docs := ExtractJSONFromJS(body)
	want := []string{
		`[{"username":"a","wager":100}]`,
		`[{"username":"b","wager":50}]`,
		`[{"username":"c","wager":25}]`,
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Fatalf("extracted docs mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractJSONFromJSSkipsUnbalanced(t *testing.T) {
	assert.Empty(t, ExtractJSONFromJS(`window.x = [{"a": 1`))
	assert.Empty(t, ExtractJSONFromJS(`var s = "[not an array]";`))
}

func TestExtractJSONFromHTML(t *testing.T) {
	body := `<html><head>
		<script type="application/ld+json">{"@type":"ItemList"}</script>
		<script>window.data = [{"username":"a","wager":9}];</script>
	</head></html>`
	docs := ExtractJSONFromHTML(body)
	require.Len(t, docs, 2)
	assert.Equal(t, `{"@type":"ItemList"}`, docs[0])
	assert.Equal(t, `[{"username":"a","wager":9}]`, docs[1])
}

func TestBufferDedupesAndBuckets(t *testing.T) {
	b := NewBuffer()
	b.Add(CapturedResponse{URL: "https://x.com/api/lb", Kind: KindJSON, Body: `[]`})
	b.Add(CapturedResponse{URL: "https://x.com/api/lb", Kind: KindJSON, Body: `[]`})
	b.Add(CapturedResponse{URL: "https://x.com/app.js", Kind: KindJS, Body: `var a=1`})
	b.Add(CapturedResponse{URL: "https://x.com/page", Kind: KindText, Body: `<html>`})

	assert.Len(t, b.JSONResponses(), 1)
	assert.Len(t, b.JSResponses(), 1)
	assert.Len(t, b.TextResponses(), 1)
	assert.Len(t, b.AllResponses(), 3)
	assert.Len(t, b.CapturedURLs(), 3)
}

func TestBufferClearKeepsPatterns(t *testing.T) {
	b := NewBuffer()
	b.Add(CapturedResponse{
		URL:                  "https://x.com/api/leaderboard/hypedrop?page=1",
		Kind:                 KindJSON,
		Body:                 `[{"username":"a","wager":1}]`,
		LooksLikeLeaderboard: true,
	})
	require.NotEmpty(t, b.Patterns())

	b.Clear()
	assert.Empty(t, b.AllResponses())
	assert.Equal(t, []string{"x.com/api/leaderboard/"}, b.Patterns())
}

func TestAddRequestFiltersByShape(t *testing.T) {
	b := NewBuffer()
	b.AddRequest(CapturedRequest{URL: "https://x.com/api/leaderboard", Method: "GET"})
	b.AddRequest(CapturedRequest{URL: "https://x.com/assets/font.woff", Method: "GET"})
	assert.Len(t, b.Requests(), 1)
}
