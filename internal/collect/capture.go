// Package collect drives a single leaderboard page to a stable state and
// captures everything the extraction strategies need: rendered HTML, a
// noise-stripped Markdown projection, element layout geometry, an optional
// screenshot, and the network buffer snapshot.
package collect

import (
	"time"

	"leaderhound/internal/nettap"
)

// LayoutNode is one visible block element with its geometry, captured for
// the geometric strategy.
type LayoutNode struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
	Text   string  `json:"text"`
}

// Capture is the collector's output for one leaderboard view.
type Capture struct {
	URL            string
	HTML           string
	Markdown       string
	BodyText       string
	Screenshot     []byte
	Responses      []nettap.CapturedResponse
	APICalls       []string
	Layout         []LayoutNode
	ViewportWidth  float64
	ViewportHeight float64
	CollectedAt    time.Time
}

// Options tunes one collection pass.
type Options struct {
	ScrollCount   int  // fixed scroll count; 0 means scroll until stable
	StablePolls   int  // consecutive equal row counts required (default 3)
	Screenshot    bool // take a viewport screenshot
	MarkdownLimit int  // byte cap on the projection (default 1 MiB)
}

func (o Options) stablePolls() int {
	if o.StablePolls <= 0 {
		return 3
	}
	return o.StablePolls
}

func (o Options) markdownLimit() int {
	if o.MarkdownLimit <= 0 {
		return 1 << 20
	}
	return o.MarkdownLimit
}
