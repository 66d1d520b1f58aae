package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"leaderhound/internal/browser"
	"leaderhound/internal/bypass"
	"leaderhound/internal/collect"
	"leaderhound/internal/discovery"
	"leaderhound/internal/interact"
	"leaderhound/internal/navigate"
	"leaderhound/internal/nettap"
	"leaderhound/internal/types"
)

// Session is the browser-facing surface the orchestrator drives. The live
// implementation wraps one rod page with the navigator, interactor, and
// collector; tests substitute a fake.
type Session interface {
	Position(ctx context.Context, baseURL, knownPath string) error
	Enumerate(ctx context.Context, siteURL string, known []types.Leaderboard) (types.Discovery, error)
	Navigate(ctx context.Context, target string) error
	CurrentURL() string
	ClickSwitcher(ctx context.Context, sw *types.Switcher) error
	ClickByText(ctx context.Context, text string) error
	SelectMaximumEntries(ctx context.Context) bool
	WaitReady(ctx context.Context)
	ClickShowMore(ctx context.Context) bool
	Collect(ctx context.Context) (*collect.Capture, error)
	FetchInPage(ctx context.Context, url string) (string, error)
	ClearBuffer()
	Close()
}

// LiveSession owns one page, its network tap, and the UI drivers for one
// site's workflow.
type LiveSession struct {
	page   *rod.Page
	tap    *nettap.Tap
	nav    *navigate.Navigator
	disc   *discovery.Discoverer
	ui     *interact.Interactor
	coll   *collect.Collector
	opts   collect.Options
	logger *zap.Logger
}

// SessionConfig wires one live session.
type SessionConfig struct {
	Bypass      *bypass.Handler
	Keywords    []string
	NavTimeout  time.Duration
	CollectOpts collect.Options
}

// NewLiveSession opens a page on the shared browser and attaches the
// network tap. The caller must Close it.
func NewLiveSession(ctx context.Context, b *browser.Browser, cfg SessionConfig, logger *zap.Logger) (*LiveSession, error) {
	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("session page: %w", err)
	}
	tap, err := nettap.Attach(ctx, page, logger)
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("session tap: %w", err)
	}

	nav := navigate.New(cfg.Bypass, cfg.NavTimeout, logger)
	return &LiveSession{
		page:   page,
		tap:    tap,
		nav:    nav,
		disc:   discovery.New(cfg.Keywords, nav, logger),
		ui:     interact.New(logger),
		coll:   collect.NewCollector(logger),
		opts:   cfg.CollectOpts,
		logger: logger,
	}, nil
}

func (s *LiveSession) Position(ctx context.Context, baseURL, knownPath string) error {
	return s.nav.Position(ctx, s.page, baseURL, knownPath)
}

func (s *LiveSession) Enumerate(ctx context.Context, siteURL string, known []types.Leaderboard) (types.Discovery, error) {
	return s.disc.Enumerate(ctx, s.page, siteURL, known)
}

func (s *LiveSession) Navigate(ctx context.Context, target string) error {
	return s.nav.NavigateWithBypass(ctx, s.page, target)
}

func (s *LiveSession) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (s *LiveSession) ClickSwitcher(ctx context.Context, sw *types.Switcher) error {
	return s.ui.ClickSwitcher(ctx, s.page, sw)
}

func (s *LiveSession) ClickByText(ctx context.Context, text string) error {
	return s.ui.ClickByText(ctx, s.page, text)
}

func (s *LiveSession) SelectMaximumEntries(ctx context.Context) bool {
	return s.ui.SelectMaximumEntries(ctx, s.page)
}

func (s *LiveSession) WaitReady(ctx context.Context) {
	s.ui.WaitForLeaderboardReady(ctx, s.page)
}

func (s *LiveSession) ClickShowMore(ctx context.Context) bool {
	return s.ui.ClickShowMore(ctx, s.page)
}

func (s *LiveSession) Collect(ctx context.Context) (*collect.Capture, error) {
	return s.coll.Collect(ctx, s.page, s.tap.Buffer(), s.opts)
}

// FetchInPage fetches a URL from inside the page so the request carries the
// session's cookies and origin. Used for paginated API follow-ups.
func (s *LiveSession) FetchInPage(ctx context.Context, url string) (string, error) {
	res, err := s.page.Context(ctx).Timeout(15*time.Second).Eval(`async (u) => {
		const resp = await fetch(u, {credentials: 'include'});
		if (!resp.ok) throw new Error('status ' + resp.status);
		return await resp.text();
	}`, url)
	if err != nil {
		return "", fmt.Errorf("in-page fetch %s: %w", url, err)
	}
	return res.Value.Str(), nil
}

func (s *LiveSession) ClearBuffer() {
	s.tap.Buffer().Clear()
}

// Close detaches the tap and closes the page.
func (s *LiveSession) Close() {
	s.tap.Close()
	_ = s.page.Close()
}
