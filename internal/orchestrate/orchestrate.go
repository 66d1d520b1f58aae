// Package orchestrate runs the per-site state machine: position the
// browser, enumerate leaderboards, drive each one to a collectable state,
// run the extraction strategies, fuse, refine, validate, and emit one
// SiteRun. A shared circuit breaker guards repeatedly failing domains.
package orchestrate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leaderhound/internal/advisor"
	"leaderhound/internal/collect"
	"leaderhound/internal/fusion"
	"leaderhound/internal/nettap"
	"leaderhound/internal/profile"
	"leaderhound/internal/refine"
	"leaderhound/internal/strategy"
	"leaderhound/internal/types"
	"leaderhound/internal/validate"
)

// Workflow bounds.
const (
	DefaultSiteTimeout = 5 * time.Minute
	maxShowMoreClicks  = 25
	maxExtraAPIPages   = 5
	minFusedEntries    = 2
)

// Orchestrator processes sites one at a time. It is safe for concurrent use
// by multiple workers, each with its own Session.
type Orchestrator struct {
	breaker     *CircuitBreaker
	profiles    *profile.Store
	advisor     *advisor.Client
	siteNames   []string
	siteTimeout time.Duration
	logger      *zap.Logger
}

// Config wires an orchestrator.
type Config struct {
	Breaker     *CircuitBreaker
	Profiles    *profile.Store
	Advisor     *advisor.Client // nil disables escalation
	SiteNames   []string        // usernames that are really the site itself
	SiteTimeout time.Duration
}

func New(cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Breaker == nil {
		cfg.Breaker = NewCircuitBreaker()
	}
	if cfg.SiteTimeout <= 0 {
		cfg.SiteTimeout = DefaultSiteTimeout
	}
	return &Orchestrator{
		breaker:     cfg.Breaker,
		profiles:    cfg.Profiles,
		advisor:     cfg.Advisor,
		siteNames:   cfg.SiteNames,
		siteTimeout: cfg.SiteTimeout,
		logger:      logger,
	}
}

// RunSite executes the full workflow for one site and always returns a
// SiteRun, even on failure. The circuit breaker is consulted before any
// browser work and updated from the outcome.
func (o *Orchestrator) RunSite(ctx context.Context, sess Session, siteURL string) *types.SiteRun {
	domain := domainOf(siteURL)
	run := &types.SiteRun{
		Domain:       domain,
		ExtractionID: uuid.NewString(),
		StartedAt:    time.Now(),
		Errors:       []string{},
		Warnings:     []string{},
	}

	if !o.breaker.Allow(domain) {
		run.Errors = append(run.Errors, fmt.Sprintf("circuit breaker open for %s", domain))
		run.CompletedAt = time.Now()
		return run
	}

	ctx, cancel := context.WithTimeout(ctx, o.siteTimeout)
	defer cancel()

	o.process(ctx, sess, run, siteURL)

	if ctx.Err() == context.DeadlineExceeded {
		run.TimedOut = true
	}
	run.CompletedAt = time.Now()

	if len(run.Results) > 0 {
		o.breaker.RecordSuccess(domain)
	} else {
		o.breaker.RecordFailure(domain)
	}
	return run
}

func (o *Orchestrator) process(ctx context.Context, sess Session, run *types.SiteRun, siteURL string) {
	var prof *profile.Profile
	if o.profiles != nil {
		prof = o.profiles.Get(run.Domain)
	}

	knownPath := ""
	var knownBoards []types.Leaderboard
	if prof != nil {
		knownPath = prof.KnownPath
		knownBoards = prof.Leaderboards
	}

	if err := sess.Position(ctx, siteURL, knownPath); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("navigation: %v", err))
		return
	}

	var disc types.Discovery
	err := withRetry(ctx, defaultRetryConfig, func() error {
		var err error
		disc, err = sess.Enumerate(ctx, siteURL, knownBoards)
		return err
	})
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("discovery: %v", err))
		return
	}
	run.Metadata.LeaderboardsDiscovered = len(disc.Leaderboards)
	if len(disc.Leaderboards) == 0 {
		run.Errors = append(run.Errors, "discovery: no leaderboards found")
		return
	}

	priorURL := sess.CurrentURL()
	for i, board := range disc.Leaderboards {
		if ctx.Err() != nil {
			return
		}
		o.processLeaderboard(ctx, sess, run, board, disc.URLPattern, priorURL, i == 0)
		priorURL = sess.CurrentURL()
	}

	if len(run.Results) > 0 && o.profiles != nil {
		method := run.Results[len(run.Results)-1].Source
		o.profiles.RecordSuccess(run.Domain, pathOf(sess.CurrentURL()), string(method), disc.Leaderboards)
	}
}

// processLeaderboard drives one board through TO_L, READY, COLL, and EXTR.
// Failures are recorded against the run and never abort the site.
func (o *Orchestrator) processLeaderboard(ctx context.Context, sess Session, run *types.SiteRun, board types.Leaderboard, urlPattern, priorURL string, first bool) {
	// The default view may have pre-loaded the first board's API responses,
	// whether it is reached by a switcher click or already sits at the
	// current URL. Every transition that leaves the default view starts
	// from an empty buffer.
	keep := first && (board.Method == types.MethodSwitcherClick ||
		((board.Method == types.MethodURLNavigation || board.Method == types.MethodProfileKnown) &&
			board.URL == sess.CurrentURL()))
	if !keep {
		sess.ClearBuffer()
	}

	if err := o.reachBoard(ctx, sess, board, urlPattern, priorURL); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("%s: interaction: %v", board.Name, err))
		return
	}

	sess.SelectMaximumEntries(ctx)
	sess.WaitReady(ctx)
	for i := 0; i < maxShowMoreClicks && sess.ClickShowMore(ctx); i++ {
		sess.WaitReady(ctx)
	}

	cap, err := sess.Collect(ctx)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("%s: collection: %v", board.Name, err))
		return
	}
	o.fetchRemainingPages(ctx, sess, cap)

	result, extractErr := o.extract(ctx, run, board, cap)
	if extractErr != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", board.Name, extractErr))
		return
	}

	run.Results = append(run.Results, *result)
	run.Metadata.LeaderboardsScraped++
	run.Metadata.AddStrategy(board.Method)
	o.logger.Info("leaderboard extracted",
		zap.String("domain", run.Domain),
		zap.String("leaderboard", board.Name),
		zap.String("source", string(result.Source)),
		zap.Int("entries", len(result.Entries)),
		zap.Float64("confidence", result.Confidence))
}

// reachBoard dispatches on the board's access method.
func (o *Orchestrator) reachBoard(ctx context.Context, sess Session, board types.Leaderboard, urlPattern, priorURL string) error {
	switch board.Method {
	case types.MethodSwitcherClick:
		if board.Switcher == nil {
			return fmt.Errorf("switcher board %q has no switcher", board.Name)
		}
		return sess.ClickSwitcher(ctx, board.Switcher)

	case types.MethodDetectedName:
		if err := sess.ClickByText(ctx, board.Name); err == nil {
			return nil
		}
		if urlPattern != "" {
			target := fmt.Sprintf(urlPattern, strings.ToLower(board.Name))
			if err := sess.Navigate(ctx, target); err == nil {
				return nil
			}
		}
		// Both routes failed; put the page back where it was.
		if priorURL != "" {
			if err := sess.Navigate(ctx, priorURL); err != nil {
				return fmt.Errorf("restore %s: %w", priorURL, err)
			}
		}
		return fmt.Errorf("board %q unreachable by name or pattern", board.Name)

	case types.MethodURLNavigation, types.MethodProfileKnown:
		if board.URL == "" {
			return fmt.Errorf("board %q has no url", board.Name)
		}
		if board.URL == sess.CurrentURL() {
			return nil
		}
		return sess.Navigate(ctx, board.URL)

	default:
		return fmt.Errorf("unknown access method %q", board.Method)
	}
}

// fetchRemainingPages follows a paginated API endpoint for up to five extra
// pages, appending each body to the capture for the API strategy.
func (o *Orchestrator) fetchRemainingPages(ctx context.Context, sess Session, cap *collect.Capture) {
	next, ok := strategy.PaginatedAPI(cap.Responses)
	if !ok {
		return
	}
	for i := 0; i < maxExtraAPIPages; i++ {
		body, err := sess.FetchInPage(ctx, next)
		if err != nil || strings.TrimSpace(body) == "" {
			return
		}
		cap.Responses = append(cap.Responses, nettap.CapturedResponse{
			URL:        next,
			Kind:       nettap.KindJSON,
			Body:       body,
			Period:     types.TypeCurrent,
			CapturedAt: time.Now(),
		})
		var more bool
		if next, more = strategy.NextPageURL(next); !more {
			return
		}
	}
}

// extract runs the strategies over the capture, fuses, refines, and
// validates. A nil error means result is populated.
func (o *Orchestrator) extract(ctx context.Context, run *types.SiteRun, board types.Leaderboard, cap *collect.Capture) (*types.LeaderboardResult, error) {
	outputs := o.runStrategies(ctx, cap)
	fused := fusion.Fuse(outputs)

	if fused == nil || len(fused.Entries) < minFusedEntries {
		return o.escalate(ctx, run, board, cap)
	}

	result, ok := o.refineAndValidate(run, board, cap, fused.Entries, fused.Source, fused.Confidence, fused.Report)
	if !ok {
		return o.escalate(ctx, run, board, cap)
	}
	return result, nil
}

// runStrategies executes the API strategy plus the three page-data
// strategies. They are pure over the capture, so the page parsers run in
// parallel.
func (o *Orchestrator) runStrategies(ctx context.Context, cap *collect.Capture) []*strategy.Output {
	outputs := make([]*strategy.Output, 4)
	outputs[0] = strategy.API(cap)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { outputs[1] = strategy.Markdown(cap); return nil })
	g.Go(func() error { outputs[2] = strategy.DOM(cap); return nil })
	g.Go(func() error { outputs[3] = strategy.Geometric(cap); return nil })
	_ = g.Wait()
	return outputs
}

// refineAndValidate sanitizes, normalizes, and validates a candidate entry
// list and assembles the result. ok is false when refinement left fewer
// than the minimum entries.
func (o *Orchestrator) refineAndValidate(run *types.SiteRun, board types.Leaderboard, cap *collect.Capture, entries []types.Entry, source types.Source, confidence float64, report *types.CrossValidation) (*types.LeaderboardResult, bool) {
	san := &refine.Sanitizer{SiteNames: o.siteNames, Domain: run.Domain}
	clean, sanWarnings := san.Sanitize(entries)
	clean = refine.Normalize(clean, board.Type)
	if len(clean) < minFusedEntries {
		return nil, false
	}

	overall := 1.0
	if report != nil {
		overall = report.OverallAgreement
	}
	v := validate.Dataset(clean, overall, validate.Options{})
	wagered, prizePool := refine.Totals(clean)

	result := &types.LeaderboardResult{
		ID:              uuid.NewString(),
		ExtractionID:    run.ExtractionID,
		Name:            board.Name,
		URL:             cap.URL,
		Type:            board.Type,
		Source:          source,
		Entries:         clean,
		TotalWagered:    wagered,
		TotalPrizePool:  prizePool,
		Confidence:      validate.ApplyPenalty(confidence, v),
		ScrapedAt:       cap.CollectedAt,
		Validation:      v,
		CrossValidation: report,
		Warnings:        append(sanWarnings, validate.Warnings(clean)...),
	}
	run.Metadata.AddStrategy(string(source))
	return result, true
}

// escalate asks the advisor for a corrected result when core extraction
// came up short. Escalation is gated by the profile's attempt budget.
func (o *Orchestrator) escalate(ctx context.Context, run *types.SiteRun, board types.Leaderboard, cap *collect.Capture) (*types.LeaderboardResult, error) {
	if o.advisor == nil || o.profiles == nil {
		return nil, fmt.Errorf("extraction empty")
	}
	prof := o.profiles.Get(run.Domain)
	if !prof.AdvisorAllowed() {
		return nil, fmt.Errorf("extraction empty, advisor budget exhausted")
	}
	o.profiles.RecordAdvisorAttempt(run.Domain)

	eval, err := o.advisor.Evaluate(ctx, run.Domain, cap)
	if err != nil {
		return nil, fmt.Errorf("extraction empty, advisor: %w", err)
	}
	if !eval.Improved || len(eval.CorrectedResult) < minFusedEntries {
		return nil, fmt.Errorf("extraction empty, advisor did not improve (%s)", eval.Reason)
	}

	result, ok := o.refineAndValidate(run, board, cap, eval.CorrectedResult, types.SourceAdvisor, eval.Confidence, nil)
	if !ok {
		return nil, fmt.Errorf("extraction empty, advisor result rejected by sanitizer")
	}
	return result, nil
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}
