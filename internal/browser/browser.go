// Package browser owns the headless Chrome lifecycle: launching or
// attaching to a debugger, and opening stealth pages preconfigured with the
// scraping user agent and viewport.
package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// DefaultUserAgent is presented on every page unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Viewport dimensions for every page.
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// Config controls how the browser is obtained.
type Config struct {
	Headless    bool   `json:"headless"`
	Bin         string `json:"bin,omitempty"`         // chrome binary; empty uses the launcher default
	DebuggerURL string `json:"debuggerUrl,omitempty"` // attach instead of launching
	UserAgent   string `json:"userAgent,omitempty"`
}

func (c Config) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return DefaultUserAgent
}

// Browser wraps one connected Chrome instance.
type Browser struct {
	browser    *rod.Browser
	controlURL string
	cfg        Config
	logger     *zap.Logger
}

// Launch connects to the configured debugger URL or launches a fresh
// Chrome with automation fingerprints reduced.
func Launch(ctx context.Context, cfg Config, logger *zap.Logger) (*Browser, error) {
	controlURL := cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-features", "IsolateOrigins,site-per-process")
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	logger.Debug("browser connected", zap.String("controlURL", controlURL))

	return &Browser{browser: b, controlURL: controlURL, cfg: cfg, logger: logger}, nil
}

// ControlURL returns the DevTools websocket URL.
func (b *Browser) ControlURL() string { return b.controlURL }

// NewPage opens a stealth page with the preset user agent and viewport.
// The caller owns the page and must close it.
func (b *Browser) NewPage(ctx context.Context) (*rod.Page, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("stealth page: %w", err)
	}
	page = page.Context(ctx)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.userAgent()}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set user agent: %w", err)
	}
	err = proto.EmulationSetDeviceMetricsOverride{
		Width:             ViewportWidth,
		Height:            ViewportHeight,
		DeviceScaleFactor: 1,
	}.Call(page)
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	return page, nil
}

// Close shuts the browser down. Pages opened from it become invalid.
func (b *Browser) Close() error {
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
