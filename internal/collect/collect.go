package collect

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"leaderhound/internal/nettap"
)

// rowSelector is the broad container set polled while scrolling; the count
// stabilizing is the signal that lazy rows have finished loading.
const rowSelector = `[class*="entry"],[class*="row"],[class*="item"],[class*="player"],[class*="card"],[class*="user"],[class*="rank"],[class*="leader"],tr,li`

const maxScrolls = 20

// Collector captures one leaderboard view from a live page.
type Collector struct {
	logger *zap.Logger
}

// NewCollector creates a collector.
func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{logger: logger}
}

// Collect scrolls the page to a stable state and captures HTML, the
// Markdown projection, body text, layout geometry, an optional screenshot,
// and a snapshot of the network buffer. Screenshot and Markdown failures
// are non-fatal: the fields stay empty.
func (c *Collector) Collect(ctx context.Context, page *rod.Page, buf *nettap.Buffer, opts Options) (*Capture, error) {
	cap := &Capture{CollectedAt: time.Now()}

	if info, err := page.Context(ctx).Info(); err == nil {
		cap.URL = info.URL
	}

	c.scrollUntilStable(ctx, page, opts)

	html, err := page.Context(ctx).HTML()
	if err != nil {
		return nil, err
	}
	cap.HTML = html

	if md, err := ProjectMarkdown(html, opts.markdownLimit()); err == nil {
		cap.Markdown = md
	} else {
		c.logger.Warn("markdown projection failed", zap.Error(err))
	}

	if res, err := page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ""`); err == nil {
		cap.BodyText = res.Value.Str()
	}

	cap.Layout, cap.ViewportWidth, cap.ViewportHeight = c.captureLayout(ctx, page)

	if opts.Screenshot {
		if shot, err := page.Context(ctx).Screenshot(false, nil); err == nil {
			cap.Screenshot = shot
		} else {
			c.logger.Warn("screenshot failed", zap.Error(err))
		}
	}

	if buf != nil {
		cap.Responses = buf.AllResponses()
		cap.APICalls = buf.CapturedURLs()
	}
	return cap, nil
}

// scrollUntilStable scrolls to the bottom either a fixed number of times or
// until the broad row count stops changing, then returns to the top.
func (c *Collector) scrollUntilStable(ctx context.Context, page *rod.Page, opts Options) {
	scrollOnce := func() {
		_, _ = page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
		page.Context(ctx).Timeout(3 * time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	}

	if opts.ScrollCount > 0 {
		for i := 0; i < opts.ScrollCount; i++ {
			if ctx.Err() != nil {
				return
			}
			scrollOnce()
		}
	} else {
		stable := 0
		lastCount := -1
		for i := 0; i < maxScrolls && stable < opts.stablePolls(); i++ {
			if ctx.Err() != nil {
				return
			}
			scrollOnce()
			count := c.rowCount(ctx, page)
			if count == lastCount {
				stable++
			} else {
				stable = 0
				lastCount = count
			}
			if c.atBottom(ctx, page) {
				break
			}
		}
	}

	_, _ = page.Context(ctx).Eval(`() => window.scrollTo(0, 0)`)
}

func (c *Collector) rowCount(ctx context.Context, page *rod.Page) int {
	res, err := page.Context(ctx).Eval(`sel => document.querySelectorAll(sel).length`, rowSelector)
	if err != nil {
		return -1
	}
	return res.Value.Int()
}

func (c *Collector) atBottom(ctx context.Context, page *rod.Page) bool {
	res, err := page.Context(ctx).Eval(`() => window.innerHeight + window.scrollY >= document.body.scrollHeight - 2`)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

// captureLayout snapshots visible block elements with their bounding boxes
// for the geometric strategy. The filter here is deliberately loose; the
// strategy applies its own size thresholds.
func (c *Collector) captureLayout(ctx context.Context, page *rod.Page) ([]LayoutNode, float64, float64) {
	res, err := page.Context(ctx).Eval(`() => {
		const out = { w: window.innerWidth, h: window.innerHeight, nodes: [] };
		const els = document.querySelectorAll('div,li,tr,article,section,a');
		for (const el of els) {
			if (out.nodes.length >= 1500) break;
			const r = el.getBoundingClientRect();
			if (r.width < 40 || r.height < 15) continue;
			const style = window.getComputedStyle(el);
			if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') continue;
			const text = (el.innerText || '').trim();
			if (!text || text.length > 400) continue;
			out.nodes.push({ x: r.x, y: r.y, w: r.width, h: r.height, text: text });
		}
		return out;
	}`)
	if err != nil {
		return nil, 0, 0
	}

	var snap struct {
		W     float64      `json:"w"`
		H     float64      `json:"h"`
		Nodes []LayoutNode `json:"nodes"`
	}
	if err := res.Value.Unmarshal(&snap); err != nil {
		return nil, 0, 0
	}
	return snap.Nodes, snap.W, snap.H
}
