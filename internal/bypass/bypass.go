// Package bypass detects anti-bot challenges on a page and drives either a
// wait-it-out or an external-solver resolution.
package bypass

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"
)

// ChallengeType identifies the protection in front of the page.
type ChallengeType string

const (
	ChallengeNone      ChallengeType = "none"
	ChallengeTurnstile ChallengeType = "cloudflare_turnstile"
	ChallengeIUAM      ChallengeType = "cloudflare_iuam"
	ChallengeHCaptcha  ChallengeType = "hcaptcha"
	ChallengeRecaptcha ChallengeType = "recaptcha_v2"
	ChallengeRecaptch3 ChallengeType = "recaptcha_v3"
	ChallengeVercel    ChallengeType = "vercel"
	ChallengeDataDome  ChallengeType = "datadome"
	ChallengeUnknown   ChallengeType = "unknown"
)

// Challenge is the detection result.
type Challenge struct {
	Type    ChallengeType
	Sitekey string
	PageURL string
}

// Outcome reports how a challenge was resolved.
type Outcome struct {
	Success bool
	Type    ChallengeType
	Method  string // "wait", "solver", "none"
	Error   string
}

// Handler detects and resolves challenges for one page.
type Handler struct {
	solver *SolverClient // nil disables external solving
	logger *zap.Logger
}

// NewHandler builds a challenge handler; solver may be nil.
func NewHandler(solver *SolverClient, logger *zap.Logger) *Handler {
	return &Handler{solver: solver, logger: logger}
}

// detectJS probes the DOM for challenge fingerprints.
const detectJS = `() => {
	const html = document.documentElement.outerHTML;
	const title = document.title;
	const find = (sel) => document.querySelector(sel);
	if (find('iframe[src*="challenges.cloudflare.com"]') || find('.cf-turnstile')) {
		const el = find('[data-sitekey]');
		return {type: 'cloudflare_turnstile', sitekey: el ? el.dataset.sitekey : ''};
	}
	if (title === 'Just a moment...' || html.includes('cf-browser-verification') || html.includes('_cf_chl_opt')) {
		return {type: 'cloudflare_iuam', sitekey: ''};
	}
	if (find('iframe[src*="hcaptcha.com"]') || find('.h-captcha')) {
		const el = find('.h-captcha[data-sitekey]');
		return {type: 'hcaptcha', sitekey: el ? el.dataset.sitekey : ''};
	}
	if (find('iframe[src*="google.com/recaptcha"]') || find('.g-recaptcha')) {
		const el = find('.g-recaptcha[data-sitekey]');
		return {type: 'recaptcha_v2', sitekey: el ? el.dataset.sitekey : ''};
	}
	if (html.includes('grecaptcha.execute')) {
		return {type: 'recaptcha_v3', sitekey: ''};
	}
	if (html.includes('vercel-security-checkpoint')) {
		return {type: 'vercel', sitekey: ''};
	}
	if (html.includes('datadome') && (title.includes('blocked') || find('iframe[src*="captcha-delivery.com"]'))) {
		return {type: 'datadome', sitekey: ''};
	}
	return {type: 'none', sitekey: ''};
}`

// Detect probes the page for a challenge. Probe failures report an unknown
// challenge rather than an error so navigation can decide what to do.
func (h *Handler) Detect(page *rod.Page) Challenge {
	info, err := page.Info()
	pageURL := ""
	if err == nil {
		pageURL = info.URL
	}

	res, err := page.Timeout(5 * time.Second).Eval(detectJS)
	if err != nil {
		return Challenge{Type: ChallengeUnknown, PageURL: pageURL}
	}
	return Challenge{
		Type:    ChallengeType(res.Value.Get("type").Str()),
		Sitekey: res.Value.Get("sitekey").Str(),
		PageURL: pageURL,
	}
}

// iuamWait bounds the wait for a Cloudflare interstitial to clear on its
// own.
const iuamWait = 20 * time.Second

// Handle resolves whatever challenge the page currently shows.
func (h *Handler) Handle(ctx context.Context, page *rod.Page) Outcome {
	ch := h.Detect(page)
	switch ch.Type {
	case ChallengeNone:
		return Outcome{Success: true, Type: ChallengeNone, Method: "none"}
	case ChallengeIUAM, ChallengeVercel:
		if h.waitForClear(ctx, page, iuamWait) {
			return Outcome{Success: true, Type: ch.Type, Method: "wait"}
		}
		return Outcome{Type: ch.Type, Method: "wait", Error: "challenge did not clear"}
	case ChallengeTurnstile, ChallengeHCaptcha, ChallengeRecaptcha:
		if h.solver == nil {
			return Outcome{Type: ch.Type, Method: "none", Error: "no solver configured"}
		}
		return h.solve(ctx, page, ch)
	default:
		return Outcome{Type: ch.Type, Method: "none", Error: "unsupported challenge"}
	}
}

// waitForClear polls the detector until the challenge type reads none.
func (h *Handler) waitForClear(ctx context.Context, page *rod.Page, bound time.Duration) bool {
	deadline := time.Now().Add(bound)
	for time.Now().Before(deadline) {
		if h.Detect(page).Type == ChallengeNone {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(500 * time.Millisecond):
		}
	}
	return false
}

func (h *Handler) solve(ctx context.Context, page *rod.Page, ch Challenge) Outcome {
	token, err := h.solver.Solve(ctx, ch)
	if err != nil {
		h.logger.Warn("solver failed", zap.String("type", string(ch.Type)), zap.Error(err))
		return Outcome{Type: ch.Type, Method: "solver", Error: err.Error()}
	}

	if err := injectToken(page, ch.Type, token); err != nil {
		h.solver.Report(ctx, false)
		return Outcome{Type: ch.Type, Method: "solver", Error: err.Error()}
	}
	h.solver.Report(ctx, true)
	return Outcome{Success: true, Type: ch.Type, Method: "solver"}
}

// injectToken writes the solved token into the response field the widget
// reads and notifies its callback.
func injectToken(page *rod.Page, ct ChallengeType, token string) error {
	field := map[ChallengeType]string{
		ChallengeTurnstile: "cf-turnstile-response",
		ChallengeHCaptcha:  "h-captcha-response",
		ChallengeRecaptcha: "g-recaptcha-response",
	}[ct]

	js := `(field, token) => {
		const els = document.querySelectorAll('[name="' + field + '"], #' + field.replace(/-/g, '\\-'));
		els.forEach(el => { el.value = token; });
		const form = document.querySelector('form');
		if (form) form.dispatchEvent(new Event('submit', {bubbles: true, cancelable: true}));
		return els.length;
	}`
	_, err := page.Timeout(5*time.Second).Eval(js, field, token)
	return err
}

// TitleLooksChallenged is a cheap pre-check usable without a DOM probe.
func TitleLooksChallenged(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "just a moment") ||
		strings.Contains(t, "attention required") ||
		strings.Contains(t, "access denied")
}
