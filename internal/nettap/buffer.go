// Package nettap observes browser network traffic for one page session,
// categorizes response bodies into JSON, JS, and text buckets, and keeps
// request metadata for leaderboard-shaped URLs so calls can be replayed.
// The tap must never raise into the page session: every parse error here is
// swallowed.
package nettap

import (
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"leaderhound/internal/types"
)

// ResponseKind buckets a captured body by its payload type.
type ResponseKind string

const (
	KindJSON ResponseKind = "json"
	KindJS   ResponseKind = "js"
	KindText ResponseKind = "text"
)

// CapturedResponse is one observed response body with its classification.
type CapturedResponse struct {
	URL                  string
	Method               string
	Status               int
	ContentType          string
	Body                 string
	Kind                 ResponseKind
	LooksLikeLeaderboard bool
	Period               types.LeaderboardType
	CapturedAt           time.Time
}

// CapturedRequest retains the method and headers of a leaderboard-shaped
// request for potential replay with the session's credentials.
type CapturedRequest struct {
	URL     string
	Method  string
	Headers map[string]string
}

// Buffer holds everything the tap saw for one page session. It is owned by
// exactly one session; Clear empties the response lists between leaderboards
// but keeps learned URL patterns.
type Buffer struct {
	mu sync.Mutex

	jsonResponses []CapturedResponse
	jsResponses   []CapturedResponse
	textResponses []CapturedResponse
	capturedURLs  []string
	requests      []CapturedRequest

	patterns map[string]struct{}
	seen     map[uint64]struct{}
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		patterns: make(map[string]struct{}),
		seen:     make(map[uint64]struct{}),
	}
}

// Add classifies and stores a response. Duplicate URL+body pairs are
// dropped.
func (b *Buffer) Add(resp CapturedResponse) {
	key := xxhash.Sum64String(resp.URL) ^ xxhash.Sum64String(resp.Body)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.seen[key]; dup {
		return
	}
	b.seen[key] = struct{}{}
	b.capturedURLs = append(b.capturedURLs, resp.URL)

	switch resp.Kind {
	case KindJSON:
		b.jsonResponses = append(b.jsonResponses, resp)
	case KindJS:
		b.jsResponses = append(b.jsResponses, resp)
	default:
		b.textResponses = append(b.textResponses, resp)
	}

	if resp.LooksLikeLeaderboard {
		b.learnPatternLocked(resp.URL)
	}
}

// AddRequest retains request metadata for leaderboard-shaped URLs.
func (b *Buffer) AddRequest(req CapturedRequest) {
	if !LeaderboardShapedURL(req.URL) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
}

// Clear empties the response lists for the next leaderboard while keeping
// learned URL patterns and the dedupe set for requests already replayed.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jsonResponses = nil
	b.jsResponses = nil
	b.textResponses = nil
	b.capturedURLs = nil
	b.requests = nil
	b.seen = make(map[uint64]struct{})
}

// JSONResponses returns a snapshot of the buffered JSON responses.
func (b *Buffer) JSONResponses() []CapturedResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]CapturedResponse(nil), b.jsonResponses...)
}

// JSResponses returns a snapshot of the buffered JS responses.
func (b *Buffer) JSResponses() []CapturedResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]CapturedResponse(nil), b.jsResponses...)
}

// TextResponses returns a snapshot of the buffered text/HTML responses.
func (b *Buffer) TextResponses() []CapturedResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]CapturedResponse(nil), b.textResponses...)
}

// AllResponses returns JSON, JS, and text responses in capture order per
// bucket, JSON first.
func (b *Buffer) AllResponses() []CapturedResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]CapturedResponse, 0, len(b.jsonResponses)+len(b.jsResponses)+len(b.textResponses))
	out = append(out, b.jsonResponses...)
	out = append(out, b.jsResponses...)
	out = append(out, b.textResponses...)
	return out
}

// CapturedURLs returns every URL the tap has seen this session.
func (b *Buffer) CapturedURLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.capturedURLs...)
}

// Requests returns the retained leaderboard-shaped requests.
func (b *Buffer) Requests() []CapturedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]CapturedRequest(nil), b.requests...)
}

// Patterns returns the learned leaderboard URL patterns (path prefixes),
// which survive Clear.
func (b *Buffer) Patterns() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.patterns))
	for p := range b.patterns {
		out = append(out, p)
	}
	return out
}

func (b *Buffer) learnPatternLocked(rawURL string) {
	// Learn the path up to the last segment so sibling leaderboards can be
	// reached by substituting the keyword.
	path := rawURL
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndex(path, "/"); i > 0 {
		b.patterns[path[:i+1]] = struct{}{}
	}
}
