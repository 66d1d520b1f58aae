// Package interact drives the leaderboard page controls: row-count
// selectors, switcher tabs, show-more pagination, and the readiness wait
// that follows every state-changing click.
package interact

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"leaderhound/internal/types"
)

// rowSelector is the broad set used for row counting and stability polls.
const rowSelector = `[class*="entry"],[class*="row"],[class*="item"],[class*="player"],[class*="rank"],[class*="leader"],tr,li`

// Readiness defaults.
const (
	networkIdleBound  = 2000 * time.Millisecond
	stabilityInterval = 600 * time.Millisecond
	stabilityPolls    = 3
	stabilityNeeded   = 2
)

// Interactor performs UI actions on one page.
type Interactor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Interactor {
	return &Interactor{logger: logger}
}

// retryOptions bound a UI action.
type retryOptions struct {
	maxRetries int
	delay      time.Duration
}

var defaultRetry = retryOptions{maxRetries: 2, delay: 400 * time.Millisecond}

// withUIRetry runs an action up to maxRetries+1 times.
func withUIRetry(ctx context.Context, opts retryOptions, action func() error) error {
	var err error
	for attempt := 0; attempt <= opts.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = action(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.delay):
		}
	}
	return err
}

// SelectMaximumEntries tries, in order: a native select, a custom dropdown,
// and a show-all button. Returns true when any strategy changed the page.
func (i *Interactor) SelectMaximumEntries(ctx context.Context, page *rod.Page) bool {
	strategies := []struct {
		name string
		fn   func(*rod.Page) (bool, error)
	}{
		{"native-select", selectNativeMax},
		{"custom-dropdown", i.selectCustomDropdown},
		{"show-all-button", clickShowAll},
	}
	for _, s := range strategies {
		var changed bool
		err := withUIRetry(ctx, defaultRetry, func() error {
			var err error
			changed, err = s.fn(page)
			return err
		})
		if err != nil {
			i.logger.Debug("row selector strategy failed", zap.String("strategy", s.name), zap.Error(err))
			continue
		}
		if changed {
			i.logger.Debug("row selector applied", zap.String("strategy", s.name))
			return true
		}
	}
	return false
}

// selectNativeMax finds a <select> whose context matches row-selector
// wording, picks the largest numeric option, and fires change/input.
func selectNativeMax(page *rod.Page) (bool, error) {
	res, err := page.Timeout(5 * time.Second).Eval(`() => {
		const ctxRe = /show|entries|rows|users|per page|display|view \d+|amount of|page size|limit/i;
		for (const sel of document.querySelectorAll('select')) {
			const context = [
				sel.getAttribute('aria-label') || '',
				sel.name || '',
				sel.id || '',
				(sel.closest('label, div, span')?.textContent || '').slice(0, 200),
			].join(' ');
			if (!ctxRe.test(context)) continue;

			let best = null, bestN = 0;
			for (const opt of sel.options) {
				for (const raw of [opt.value, opt.textContent || '']) {
					const n = parseInt(raw.replace(/[^0-9]/g, ''), 10);
					if (n > bestN && n <= 10000) { bestN = n; best = opt; }
				}
			}
			if (!best || sel.value === best.value) continue;
			sel.value = best.value;
			sel.dispatchEvent(new Event('change', {bubbles: true}));
			sel.dispatchEvent(new Event('input', {bubbles: true}));
			return true;
		}
		return false;
	}`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// selectCustomDropdown handles div-based row selectors: find the trigger,
// open it through the fallback chain (elementFromPoint click, synthesized
// mouse press, role locator), pick the largest numeric option or "All". A
// keyboard walk is the last resort when no popover ever appears.
func (i *Interactor) selectCustomDropdown(page *rod.Page) (bool, error) {
	// Locate and score triggers: smaller, more specific elements first.
	res, err := page.Timeout(5 * time.Second).Eval(`() => {
		const ctxRe = /show|entries|rows|users|per page|display|view \d+|amount of|page size|limit/i;
		const candidates = [];
		const els = document.querySelectorAll(
			'[role="combobox"], [role="listbox"], [role="menuitem"], button[aria-haspopup="listbox"], div[class*="select"], div[class*="dropdown"]');
		for (const el of els) {
			const text = (el.textContent || '').slice(0, 120);
			const near = (el.parentElement?.textContent || '').slice(0, 200);
			if (!ctxRe.test(text) && !ctxRe.test(near)) continue;
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			candidates.push({x: r.x + r.width / 2, y: r.y + r.height / 2, area: r.width * r.height});
		}
		candidates.sort((a, b) => a.area - b.area);
		if (candidates.length === 0) return null;
		const c = candidates[0];
		const target = document.elementFromPoint(c.x, c.y);
		if (target) { target.scrollIntoView({block: 'center'}); }
		return {x: c.x, y: c.y};
	}`)
	if err != nil {
		return false, err
	}
	if res.Value.Nil() {
		return false, nil
	}
	x, y := res.Value.Get("x").Num(), res.Value.Get("y").Num()

	openers := []func() error{
		func() error { return clickAtPoint(page, x, y) },
		func() error { return pressAtPoint(page, x, y) },
		func() error { return clickRoleTrigger(page) },
	}
	for _, open := range openers {
		if err := open(); err != nil {
			continue
		}
		time.Sleep(300 * time.Millisecond)
		picked, err := pickLargestOption(page)
		if err != nil {
			return false, err
		}
		if picked {
			return true, nil
		}
	}
	return i.keyboardSelect(page, x, y)
}

func clickAtPoint(page *rod.Page, x, y float64) error {
	res, err := page.Timeout(3*time.Second).Eval(`(x, y) => {
		const el = document.elementFromPoint(x, y);
		if (el) el.click();
		return !!el;
	}`, x, y)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("no element at %.0f,%.0f", x, y)
	}
	return nil
}

func pressAtPoint(page *rod.Page, x, y float64) error {
	if err := page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	return page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

// clickRoleTrigger opens the row-count control through its ARIA role rather
// than its position.
func clickRoleTrigger(page *rod.Page) error {
	res, err := page.Timeout(3 * time.Second).Eval(`() => {
		const ctxRe = /show|entries|rows|users|per page|display|view \d+|amount of|page size|limit/i;
		for (const el of document.querySelectorAll('[role="combobox"], button[aria-haspopup], [role="button"][aria-expanded]')) {
			const text = (el.textContent || '') + ' ' + (el.getAttribute('aria-label') || '');
			if (!ctxRe.test(text)) continue;
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			el.click();
			return true;
		}
		return false;
	}`)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("no role-locatable trigger")
	}
	return nil
}

// pickLargestOption picks the highest numeric option (or "All") out of a
// visible popover.
func pickLargestOption(page *rod.Page) (bool, error) {
	picked, err := page.Timeout(3 * time.Second).Eval(`() => {
		const pop = document.querySelector('[role="listbox"], [role="menu"], [class*="popover"], [class*="dropdown-menu"], [class*="menu-items"]');
		if (!pop || pop.getBoundingClientRect().height === 0) return false;
		let best = null, bestN = -1;
		for (const opt of pop.querySelectorAll('[role="option"], li, div, button')) {
			const text = (opt.textContent || '').trim();
			if (/^all$/i.test(text)) { best = opt; bestN = Infinity; break; }
			const n = parseInt(text.replace(/[^0-9]/g, ''), 10);
			if (n > bestN && n <= 10000) { bestN = n; best = opt; }
		}
		if (!best) return false;
		best.click();
		return true;
	}`)
	if err != nil {
		return false, err
	}
	return picked.Value.Bool(), nil
}

// keyboardSelect drives the trigger with the keyboard: focus (Tab when
// nothing at the point is focusable), open with Enter, walk the options
// with ArrowDown, commit with Enter. Option lists put the largest count or
// "All" last, so the walk overshoots and lands on the final option.
func (i *Interactor) keyboardSelect(page *rod.Page, x, y float64) (bool, error) {
	res, err := page.Timeout(3*time.Second).Eval(`(x, y) => {
		const el = document.elementFromPoint(x, y);
		if (!el) return false;
		el.focus();
		return document.activeElement === el;
	}`, x, y)
	if err != nil {
		return false, err
	}
	if !res.Value.Bool() {
		if err := page.Keyboard.Press(input.Tab); err != nil {
			return false, err
		}
	}
	if err := page.Keyboard.Press(input.Enter); err != nil {
		return false, err
	}
	time.Sleep(300 * time.Millisecond)
	for j := 0; j < 12; j++ {
		if err := page.Keyboard.Press(input.ArrowDown); err != nil {
			return false, err
		}
	}
	if err := page.Keyboard.Press(input.Enter); err != nil {
		return false, err
	}
	i.logger.Debug("row selector driven by keyboard")
	return true, nil
}

// clickShowAll clicks a visible show-all/view-all control.
func clickShowAll(page *rod.Page) (bool, error) {
	res, err := page.Timeout(5 * time.Second).Eval(`() => {
		const re = /^\s*(show all|view all|display all|load all)\s*$/i;
		for (const el of document.querySelectorAll('button, a, [role="button"]')) {
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			if (re.test(el.textContent || '')) { el.click(); return true; }
		}
		return false;
	}`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// ClickSwitcher activates a discovered leaderboard switcher, preferring its
// recorded coordinates and falling back to a text click.
func (i *Interactor) ClickSwitcher(ctx context.Context, page *rod.Page, sw *types.Switcher) error {
	return withUIRetry(ctx, defaultRetry, func() error {
		if sw.HasCoordinates {
			if err := page.Mouse.MoveTo(proto.Point{X: sw.X, Y: sw.Y}); err == nil {
				if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err == nil {
					return nil
				}
			}
		}
		return i.ClickByText(ctx, page, sw.Keyword)
	})
}

// ClickByText clicks the first visible clickable element containing the
// text, case-insensitive.
func (i *Interactor) ClickByText(ctx context.Context, page *rod.Page, text string) error {
	res, err := page.Timeout(5*time.Second).Eval(`(needle) => {
		needle = needle.toLowerCase();
		const els = document.querySelectorAll('a, button, [role="tab"], [role="button"], [onclick], [class*="switch"], [class*="tab"]');
		for (const el of els) {
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			if ((el.textContent || '').toLowerCase().includes(needle)) { el.click(); return true; }
		}
		return false;
	}`, text)
	if err != nil {
		return fmt.Errorf("click by text %q: %w", text, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("click by text %q: no visible element", text)
	}
	return nil
}

// DetectLeaderboardTabs lists tab-like controls naming other leaderboards.
func (i *Interactor) DetectLeaderboardTabs(page *rod.Page) []string {
	res, err := page.Timeout(5 * time.Second).Eval(`() => {
		const re = /leaderboards?|rankings?|standings|top players|wager race/i;
		const out = [];
		const seen = new Set();
		for (const el of document.querySelectorAll('a, button, [role="tab"]')) {
			const text = (el.textContent || '').trim();
			if (text.length === 0 || text.length > 60) continue;
			if (!re.test(text) || seen.has(text)) continue;
			seen.add(text);
			out.push(text);
		}
		return out;
	}`)
	if err != nil {
		return nil
	}
	var tabs []string
	if res.Value.Unmarshal(&tabs) != nil {
		return nil
	}
	return tabs
}

// ClickShowMore clicks one pagination control. Returns false when none is
// visible, which ends the show-more loop.
func (i *Interactor) ClickShowMore(ctx context.Context, page *rod.Page) bool {
	res, err := page.Timeout(5 * time.Second).Eval(`() => {
		const re = /^\s*(next|more|load more|show more|view all|page \d+|\d+\s*-\s*\d+\s*of)\s*$/i;
		for (const el of document.querySelectorAll('button, a, [role="button"]')) {
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			if (el.disabled || el.getAttribute('aria-disabled') === 'true') continue;
			if (re.test(el.textContent || '')) { el.click(); return true; }
		}
		return false;
	}`)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

// WaitForLeaderboardReady blocks until the page settles after an
// interaction: bounded network idle, then row-count stability across polls.
func (i *Interactor) WaitForLeaderboardReady(ctx context.Context, page *rod.Page) {
	page.Timeout(networkIdleBound).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()

	stable := 0
	last := -1
	for poll := 0; poll < stabilityPolls && stable < stabilityNeeded; poll++ {
		count := rowCount(page)
		if count == last {
			stable++
		} else {
			stable = 1
			last = count
		}
		if stable >= stabilityNeeded {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(stabilityInterval):
		}
	}
}

func rowCount(page *rod.Page) int {
	res, err := page.Timeout(2*time.Second).Eval(`(sel) => document.querySelectorAll(sel).length`, rowSelector)
	if err != nil {
		return -1
	}
	return res.Value.Int()
}
