package strategy

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"leaderhound/internal/collect"
	"leaderhound/internal/nettap"
	"leaderhound/internal/types"
)

// Output is one strategy's extraction for a leaderboard view.
type Output struct {
	Source     types.Source
	Entries    []types.Entry
	Prizes     []float64
	Confidence float64
}

// Key preference lists for mapping arbitrary API objects onto the canonical
// entry schema. Order matters: the first present key wins.
var (
	apiUsernameKeys = []string{"username", "user", "name", "displayName", "display_name", "player", "nick"}
	apiWagerKeys    = []string{"wager", "wagered", "amount", "total", "totalWager", "total_wager", "points", "score"}
	apiPrizeKeys    = []string{"prize", "reward", "payout", "winnings"}
	apiRankKeys     = []string{"rank", "position", "place"}
)

// API extracts entries from the captured network payloads: JSON bodies
// directly, and arrays embedded in JS and HTML bodies. Responses from the
// same endpoint that differ only by page parameter are unioned across pages
// first; among the resulting candidates the one yielding the most valid
// entries wins.
func API(cap *collect.Capture) *Output {
	var best []types.Entry

	consider := func(entries []types.Entry) {
		if len(entries) > len(best) {
			best = entries
		}
	}

	paged := make(map[string][]pagedEntries)

	for _, resp := range cap.Responses {
		switch resp.Kind {
		case nettap.KindJSON:
			entries := entriesFromJSON(resp.Body, resp.Period)
			if entries == nil {
				continue
			}
			if base, page, ok := splitPageParam(resp.URL); ok {
				paged[base] = append(paged[base], pagedEntries{page: page, entries: entries})
				continue
			}
			consider(entries)
		case nettap.KindJS:
			for _, doc := range nettap.ExtractJSONFromJS(resp.Body) {
				consider(entriesFromJSON(doc, resp.Period))
			}
		case nettap.KindText:
			for _, doc := range nettap.ExtractJSONFromHTML(resp.Body) {
				consider(entriesFromJSON(doc, resp.Period))
			}
		}
	}

	for _, pages := range paged {
		consider(unionPages(pages))
	}

	if len(best) == 0 {
		return nil
	}
	return &Output{Source: types.SourceAPI, Entries: best, Confidence: 90}
}

type pagedEntries struct {
	page    int
	entries []types.Entry
}

// splitPageParam returns the URL with its page parameter removed plus the
// page number, when the URL carries one.
func splitPageParam(rawURL string) (base string, page int, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, false
	}
	q := u.Query()
	page, err = strconv.Atoi(q.Get("page"))
	if err != nil || page <= 0 {
		return "", 0, false
	}
	q.Del("page")
	u.RawQuery = q.Encode()
	return u.String(), page, true
}

// unionPages joins paginated responses in page order. Page boundaries can
// overlap, so usernames already seen are dropped and colliding or missing
// ranks continue from the highest assigned so far.
func unionPages(pages []pagedEntries) []types.Entry {
	sort.Slice(pages, func(i, j int) bool { return pages[i].page < pages[j].page })

	seen := make(map[string]bool)
	usedRank := make(map[int]bool)
	maxRank := 0
	var out []types.Entry
	for _, p := range pages {
		for _, e := range p.entries {
			key := strings.ToLower(strings.TrimSpace(e.Username))
			if key != "" && seen[key] {
				continue
			}
			seen[key] = true
			if e.Rank <= 0 || usedRank[e.Rank] {
				e.Rank = maxRank + 1
			}
			usedRank[e.Rank] = true
			if e.Rank > maxRank {
				maxRank = e.Rank
			}
			out = append(out, e)
		}
	}
	return out
}

// entriesFromJSON maps the first leaderboard-shaped array in the document
// onto canonical entries. Unmappable elements are skipped.
func entriesFromJSON(doc string, period types.LeaderboardType) []types.Entry {
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil
	}
	arr := nettap.FirstEntryArray(v)
	if arr == nil {
		return nil
	}

	now := time.Now()
	entries := make([]types.Entry, 0, len(arr))
	for i, obj := range arr {
		e := types.Entry{ExtractedAt: now, LeaderboardType: period}

		if name, ok := firstString(obj, apiUsernameKeys); ok && ValidUsername(name) {
			e.Username = name
		} else {
			continue
		}
		if w, ok := firstNumber(obj, apiWagerKeys); ok {
			e.Wager = w
		}
		if p, ok := firstNumber(obj, apiPrizeKeys); ok {
			e.Prize = p
		}
		if r, ok := firstNumber(obj, apiRankKeys); ok && r > 0 {
			e.Rank = int(r)
		} else {
			e.Rank = i + 1
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}

func firstString(obj map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func firstNumber(obj map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n >= 0 {
				return n, true
			}
		case string:
			if f, ok := ParseAmount(n); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// PaginatedAPI inspects captured JSON responses for a paginated endpoint:
// the URL exposes both page=N and limit=M and the response returned exactly
// M entries, suggesting more pages exist. Historical URLs are never
// paginated further.
func PaginatedAPI(responses []nettap.CapturedResponse) (nextURL string, ok bool) {
	for _, resp := range responses {
		if resp.Kind != nettap.KindJSON || nettap.HistoricalURL(resp.URL) {
			continue
		}
		u, err := url.Parse(resp.URL)
		if err != nil {
			continue
		}
		q := u.Query()
		pageStr, limitStr := q.Get("page"), q.Get("limit")
		if pageStr == "" || limitStr == "" {
			continue
		}
		page, err1 := strconv.Atoi(pageStr)
		limit, err2 := strconv.Atoi(limitStr)
		if err1 != nil || err2 != nil || limit <= 0 {
			continue
		}

		var v any
		if json.Unmarshal([]byte(resp.Body), &v) != nil {
			continue
		}
		arr := nettap.FirstEntryArray(v)
		if len(arr) != limit {
			continue
		}

		q.Set("page", strconv.Itoa(page+1))
		u.RawQuery = q.Encode()
		return u.String(), true
	}
	return "", false
}

// NextPageURL advances the page parameter of a paginated URL by one.
func NextPageURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		return "", false
	}
	q.Set("page", strconv.Itoa(page+1))
	u.RawQuery = q.Encode()
	return u.String(), true
}
