// Package discovery enumerates the leaderboards reachable from a site:
// keyword-tagged switcher elements on candidate pages, URL short-circuits,
// and profile-known boards missing from the scan.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"leaderhound/internal/navigate"
	"leaderhound/internal/types"
)

// DefaultKeywords tag switchers when no keywords.txt is configured.
var DefaultKeywords = []string{
	"hypedrop", "packdraw", "rustclash", "clash", "keydrop", "csgoroll",
	"stake", "gamdom", "rollbit", "shuffle", "roobet", "rain",
	"cases", "crypto", "weekly", "monthly",
}

// maxScanPaths bounds how many candidate pages the scan visits.
const maxScanPaths = 3

var candidatePaths = []string{"", "/leaderboard", "/leaderboards"}

// Discoverer scans one site for leaderboards.
type Discoverer struct {
	keywords []string
	nav      *navigate.Navigator
	logger   *zap.Logger
}

// New builds a discoverer. Empty keywords falls back to the default set.
func New(keywords []string, nav *navigate.Navigator, logger *zap.Logger) *Discoverer {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	return &Discoverer{keywords: keywords, nav: nav, logger: logger}
}

// Enumerate finds the site's leaderboards. The page is expected to already
// be positioned on the site. Profile-known boards absent from the scan are
// appended with the profile-known method.
func (d *Discoverer) Enumerate(ctx context.Context, page *rod.Page, siteURL string, known []types.Leaderboard) (types.Discovery, error) {
	if lb, ok := d.shortCircuit(siteURL); ok {
		return types.Discovery{
			Leaderboards: appendKnown([]types.Leaderboard{lb}, known),
			URLPattern:   patternFor(siteURL),
		}, nil
	}

	base, err := url.Parse(siteURL)
	if err != nil {
		return types.Discovery{}, fmt.Errorf("discovery: bad site url %q: %w", siteURL, err)
	}

	var switchers []types.Switcher
	scanned := 0
	for _, p := range candidatePaths {
		if scanned >= maxScanPaths {
			break
		}
		if p != "" {
			target := base.ResolveReference(&url.URL{Path: p}).String()
			if err := d.nav.NavigateWithBypass(ctx, page, target); err != nil {
				d.logger.Debug("discovery path unreachable", zap.String("path", p), zap.Error(err))
				continue
			}
		}
		scanned++
		found := d.scanSwitchers(page, p)
		switchers = append(switchers, found...)
		if len(found) > 0 {
			break
		}
	}

	switchers = dedupeSwitchers(switchers)
	sortByPriority(switchers)

	boards := make([]types.Leaderboard, 0, len(switchers)+1)
	if len(switchers) == 0 {
		if cur := currentURL(page); cur != "" {
			boards = append(boards, types.Leaderboard{
				Name:   "default",
				URL:    cur,
				Method: types.MethodURLNavigation,
				Type:   types.TypeCurrent,
			})
		}
	} else {
		for i := range switchers {
			sw := switchers[i]
			boards = append(boards, types.Leaderboard{
				Name:     sw.Keyword,
				Method:   types.MethodSwitcherClick,
				Switcher: &sw,
				Type:     types.TypeCurrent,
			})
		}
	}

	return types.Discovery{
		Leaderboards: appendKnown(boards, known),
		Switchers:    switchers,
	}, nil
}

// shortCircuit recognizes incoming URLs that already name one leaderboard,
// like /leaderboards/hypedrop.
func (d *Discoverer) shortCircuit(siteURL string) (types.Leaderboard, bool) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return types.Leaderboard{}, false
	}
	path := strings.ToLower(strings.TrimSuffix(u.Path, "/"))
	for _, kw := range d.keywords {
		if strings.HasSuffix(path, "/leaderboard/"+kw) || strings.HasSuffix(path, "/leaderboards/"+kw) {
			return types.Leaderboard{
				Name:   kw,
				URL:    siteURL,
				Method: types.MethodURLNavigation,
				Type:   types.TypeCurrent,
			}, true
		}
	}
	return types.Leaderboard{}, false
}

// patternFor derives the URL template other keywords would live under,
// like https://x.com/leaderboards/%s.
func patternFor(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil {
		return ""
	}
	path := strings.TrimSuffix(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return ""
	}
	u.Path = path[:idx] + "/%s"
	return u.String()
}

// scanSwitchers collects keyword-matching clickable elements: text, image
// alt, image filename, data attributes, and href segments all count.
func (d *Discoverer) scanSwitchers(page *rod.Page, path string) []types.Switcher {
	res, err := page.Timeout(5*time.Second).Eval(`(keywords) => {
		const out = [];
		const els = document.querySelectorAll('a, button, [role="tab"], [role="button"], [onclick], [class*="switch"], [class*="tab"]');
		for (const el of els) {
			const hay = [
				(el.textContent || '').toLowerCase(),
				(el.getAttribute('href') || '').toLowerCase(),
			];
			for (const img of el.querySelectorAll('img')) {
				hay.push((img.alt || '').toLowerCase());
				hay.push((img.src || '').toLowerCase().split('/').pop() || '');
			}
			for (const attr of el.attributes) {
				if (attr.name.startsWith('data-')) hay.push((attr.value || '').toLowerCase());
			}
			const joined = hay.join(' ');
			for (const kw of keywords) {
				if (!joined.includes(kw)) continue;
				const r = el.getBoundingClientRect();
				const visible = r.width > 0 && r.height > 0;
				out.push({
					keyword: kw,
					x: visible ? r.x + r.width / 2 : 0,
					y: visible ? r.y + r.height / 2 : 0,
					hasCoordinates: visible,
					priority: visible ? 2 : 1,
				});
				break;
			}
		}
		return out;
	}`, d.keywords)
	if err != nil {
		return nil
	}

	var raw []struct {
		Keyword        string  `json:"keyword"`
		X              float64 `json:"x"`
		Y              float64 `json:"y"`
		HasCoordinates bool    `json:"hasCoordinates"`
		Priority       int     `json:"priority"`
	}
	if err := res.Value.Unmarshal(&raw); err != nil {
		return nil
	}

	switchers := make([]types.Switcher, 0, len(raw))
	for _, r := range raw {
		switchers = append(switchers, types.Switcher{
			Keyword:        r.Keyword,
			X:              r.X,
			Y:              r.Y,
			HasCoordinates: r.HasCoordinates,
			Priority:       r.Priority,
			FoundOnPath:    path,
		})
	}
	return switchers
}

// dedupeSwitchers collapses same-keyword candidates, preferring ones with
// coordinates and higher priority. Order of first appearance is kept.
func dedupeSwitchers(switchers []types.Switcher) []types.Switcher {
	best := make(map[string]types.Switcher)
	var order []string
	for _, sw := range switchers {
		cur, ok := best[sw.Keyword]
		if !ok {
			best[sw.Keyword] = sw
			order = append(order, sw.Keyword)
			continue
		}
		if (sw.HasCoordinates && !cur.HasCoordinates) ||
			(sw.HasCoordinates == cur.HasCoordinates && sw.Priority > cur.Priority) {
			best[sw.Keyword] = sw
		}
	}
	out := make([]types.Switcher, 0, len(order))
	for _, kw := range order {
		out = append(out, best[kw])
	}
	return out
}

// appendKnown adds profile boards the scan did not produce.
func appendKnown(boards []types.Leaderboard, known []types.Leaderboard) []types.Leaderboard {
	have := make(map[string]bool, len(boards))
	for _, b := range boards {
		have[strings.ToLower(b.Name)] = true
	}
	for _, k := range known {
		if have[strings.ToLower(k.Name)] {
			continue
		}
		k.Method = types.MethodProfileKnown
		boards = append(boards, k)
	}
	return boards
}

// sortByPriority orders switchers for clicking: coordinates first, then
// priority descending.
func sortByPriority(switchers []types.Switcher) {
	sort.SliceStable(switchers, func(i, j int) bool {
		if switchers[i].HasCoordinates != switchers[j].HasCoordinates {
			return switchers[i].HasCoordinates
		}
		return switchers[i].Priority > switchers[j].Priority
	})
}

func currentURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}
