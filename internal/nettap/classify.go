package nettap

import (
	"encoding/json"
	"sort"
	"strings"

	"leaderhound/internal/types"
)

var leaderboardURLMarkers = []string{"leaderboard", "ranking", "leaders", "api"}

// LeaderboardShapedURL reports whether a URL is worth retaining for replay.
func LeaderboardShapedURL(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, m := range leaderboardURLMarkers {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

var historicalURLMarkers = []string{
	"previous", "past", "history", "archive", "last", "old", "ended", "completed",
}

// ClassifyPeriod decides whether a response belongs to the current or a
// previous leaderboard cycle, from URL substrings first and response flags
// second.
func ClassifyPeriod(rawURL, body string) types.LeaderboardType {
	u := strings.ToLower(rawURL)
	for _, m := range historicalURLMarkers {
		if strings.Contains(u, m) {
			return types.TypePrevious
		}
	}
	if strings.Contains(body, `"ended":true`) || strings.Contains(body, `"ended": true`) ||
		strings.Contains(body, `"status":"completed"`) || strings.Contains(body, `"status": "completed"`) {
		return types.TypePrevious
	}
	return types.TypeCurrent
}

// HistoricalURL reports whether a URL points at an archived cycle.
func HistoricalURL(rawURL string) bool {
	return ClassifyPeriod(rawURL, "") == types.TypePrevious
}

var usernameKeys = []string{"username", "user", "name", "displayName", "display_name", "player", "nick"}

// LooksLikeLeaderboardJSON probes a JSON body for leaderboard shape: any
// array of objects where elements carry at least one name-ish key and at
// least one numeric field. Parse errors mean "no".
func LooksLikeLeaderboardJSON(body string) bool {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return false
	}
	arr := FirstEntryArray(v)
	return arr != nil
}

// FirstEntryArray walks an arbitrary decoded JSON value depth-first and
// returns the first array whose elements look like leaderboard entries.
// Object keys are visited in sorted order so the choice is deterministic
// when a body carries more than one candidate array.
func FirstEntryArray(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		if arr := entryArray(t); arr != nil {
			return arr
		}
		for _, item := range t {
			if arr := FirstEntryArray(item); arr != nil {
				return arr
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if arr := FirstEntryArray(t[k]); arr != nil {
				return arr
			}
		}
	}
	return nil
}

func entryArray(items []any) []map[string]any {
	if len(items) == 0 {
		return nil
	}
	objs := make([]map[string]any, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		objs = append(objs, obj)
	}
	// Probe the first element: a name-ish key plus any numeric field.
	first := objs[0]
	hasName := false
	for _, k := range usernameKeys {
		if _, ok := first[k]; ok {
			hasName = true
			break
		}
	}
	if !hasName {
		return nil
	}
	for _, val := range first {
		if _, ok := val.(float64); ok {
			return objs
		}
		if s, ok := val.(string); ok {
			if looksNumeric(s) {
				return objs
			}
		}
	}
	return nil
}

func looksNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot && i > 0:
			dot = true
		case (r == ',' || r == '$') && i >= 0:
		default:
			return false
		}
	}
	return true
}
