// Package navigate positions the browser on a site's leaderboard page,
// trying the profile-known path, site navigation links, SPA clicks, and
// standard paths in that order.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"leaderhound/internal/bypass"
)

// ErrNavigationFailed means no strategy could position the page.
var ErrNavigationFailed = errors.New("navigation failed")

// historicalPathMarkers disqualify a leaderboard link as the live board.
var historicalPathMarkers = []string{"prev-", "previous-", "past-", "history", "archive"}

// standardPaths tried last, most common first.
var standardPaths = []string{"/leaderboards", "/leaderboard", "/lb", "/rankings"}

// Navigator drives one page toward the leaderboard view.
type Navigator struct {
	bypass  *bypass.Handler
	logger  *zap.Logger
	timeout time.Duration
}

// New builds a navigator. timeout bounds each individual navigation.
func New(handler *bypass.Handler, timeout time.Duration, logger *zap.Logger) *Navigator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Navigator{bypass: handler, logger: logger, timeout: timeout}
}

// Position lands the page on the site's leaderboard. knownPath is the
// profile-recorded leaderboard path and may be empty.
func (n *Navigator) Position(ctx context.Context, page *rod.Page, baseURL, knownPath string) error {
	base, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("%w: bad base url %q", ErrNavigationFailed, baseURL)
	}

	current := pageURL(page)
	if current == "" || !sameHost(current, base) {
		if err := n.NavigateWithBypass(ctx, page, baseURL); err != nil {
			return fmt.Errorf("%w: base navigation: %v", ErrNavigationFailed, err)
		}
		current = pageURL(page)
	}

	if AlreadyPositioned(current) {
		return nil
	}

	if knownPath != "" {
		if err := n.NavigateWithBypass(ctx, page, resolve(base, knownPath)); err == nil && n.looksLikeLeaderboard(page) {
			return nil
		}
	}

	if href := n.findNavLink(page); href != "" {
		if err := n.NavigateWithBypass(ctx, page, resolve(base, href)); err == nil && n.looksLikeLeaderboard(page) {
			return nil
		}
	}

	if n.clickSPALink(ctx, page) && n.looksLikeLeaderboard(page) {
		return nil
	}

	for _, p := range standardPaths {
		if err := n.NavigateWithBypass(ctx, page, resolve(base, p)); err != nil {
			continue
		}
		if n.looksLikeLeaderboard(page) {
			return nil
		}
	}

	return fmt.Errorf("%w: no strategy positioned %s", ErrNavigationFailed, base.Host)
}

// AlreadyPositioned reports whether a URL is a live leaderboard path.
func AlreadyPositioned(rawURL string) bool {
	u := strings.ToLower(rawURL)
	if !strings.Contains(u, "/leaderboard") {
		return false
	}
	for _, m := range historicalPathMarkers {
		if strings.Contains(u, m) {
			return false
		}
	}
	return true
}

// NavigateWithBypass navigates, waits for content, resolves any challenge,
// and gives the page a rendering grace.
func (n *Navigator) NavigateWithBypass(ctx context.Context, page *rod.Page, target string) error {
	if err := page.Timeout(n.timeout).Navigate(target); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}

	// DOMContentLoaded, not window.load: ad-heavy sites never finish load.
	_, _ = page.Timeout(n.timeout).Eval(`() => new Promise(r => {
		if (document.readyState !== 'loading') r();
		else document.addEventListener('DOMContentLoaded', r);
	})`)

	if n.bypass != nil {
		outcome := n.bypass.Handle(ctx, page)
		if !outcome.Success && outcome.Type != bypass.ChallengeNone {
			n.logger.Warn("challenge unresolved",
				zap.String("type", string(outcome.Type)),
				zap.String("url", target),
				zap.String("error", outcome.Error))
		}
	}

	// Key leaderboard selector; absence is not fatal, discovery may still
	// find switchers on a landing page.
	_, _ = page.Timeout(5 * time.Second).Eval(`() => new Promise(r => {
		const probe = () => document.querySelector('table, [class*="leaderboard"], [class*="Leaderboard"]');
		if (probe()) { r(true); return; }
		const obs = new MutationObserver(() => { if (probe()) { obs.disconnect(); r(true); } });
		obs.observe(document.body || document.documentElement, {childList: true, subtree: true});
		setTimeout(() => { obs.disconnect(); r(false); }, 4500);
	})`)

	page.Timeout(5 * time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	time.Sleep(300 * time.Millisecond)
	return nil
}

// findNavLink scans nav/header anchors for a leaderboard link, preferring
// ones whose text and href carry no historical markers.
func (n *Navigator) findNavLink(page *rod.Page) string {
	res, err := page.Timeout(5 * time.Second).Eval(`() => {
		const anchors = document.querySelectorAll('nav a[href], header a[href], [role="navigation"] a[href]');
		const hist = /prev-|previous-|past-|history|archive/i;
		let fallback = '';
		for (const a of anchors) {
			const href = a.getAttribute('href') || '';
			const text = (a.textContent || '').trim();
			if (!/leaderboard/i.test(href) && !/leaderboard/i.test(text)) continue;
			if (!hist.test(href) && !hist.test(text)) return href;
			if (!fallback) fallback = href;
		}
		return fallback;
	}`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// clickSPALink clicks an on-page leaderboard element for single-page apps
// whose links are not anchors.
func (n *Navigator) clickSPALink(ctx context.Context, page *rod.Page) bool {
	res, err := page.Timeout(5 * time.Second).Eval(`() => {
		const re = /^\s*(leaderboards?|rankings?|standings)\s*$/i;
		const els = document.querySelectorAll('button, [role="link"], [role="tab"], div[onclick], span[onclick]');
		for (const el of els) {
			if (re.test(el.textContent || '')) { el.click(); return true; }
		}
		return false;
	}`)
	if err != nil || !res.Value.Bool() {
		return false
	}
	page.Timeout(5 * time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return true
}

// looksLikeLeaderboard accepts the current page when its URL or DOM carries
// leaderboard evidence.
func (n *Navigator) looksLikeLeaderboard(page *rod.Page) bool {
	if AlreadyPositioned(pageURL(page)) {
		return true
	}
	res, err := page.Timeout(3 * time.Second).Eval(`() =>
		!!document.querySelector('table, [class*="leaderboard"], [class*="Leaderboard"], [class*="ranking"]')`)
	return err == nil && res.Value.Bool()
}

func pageURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func sameHost(rawURL string, base *url.URL) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, base.Host)
}

func resolve(base *url.URL, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return base.String()
	}
	return base.ResolveReference(r).String()
}
