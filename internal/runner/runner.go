// Package runner schedules site processing: a bounded worker pool over the
// site queue, start pacing, refresh-interval skips, persistence of each
// finished run, and a graceful drain on shutdown.
package runner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"leaderhound/internal/orchestrate"
	"leaderhound/internal/profile"
	"leaderhound/internal/store"
	"leaderhound/internal/types"
)

// drainGrace is how long in-flight sites may keep running after shutdown
// is requested.
const drainGrace = 30 * time.Second

// Datastore is the subset of the SQLite store the runner uses.
type Datastore interface {
	SaveRun(run *types.SiteRun) error
	RecordFailure(domain string) error
	LastScraped(domain string) (time.Time, error)
}

// SessionFactory opens a fresh browser session for one site.
type SessionFactory func(ctx context.Context) (orchestrate.Session, error)

// Config wires a runner.
type Config struct {
	Workers    int
	SiteDelay  time.Duration // minimum spacing between site starts
	Refresh    time.Duration // skip sites scraped more recently than this
	Production bool          // write to the datastore
	ResultsDir string
}

// Runner executes site runs through the orchestrator.
type Runner struct {
	orch       *orchestrate.Orchestrator
	newSession SessionFactory
	db         Datastore // nil in dry runs
	profiles   *profile.Store
	cfg        Config
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func New(orch *orchestrate.Orchestrator, newSession SessionFactory, db Datastore, profiles *profile.Store, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SiteDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.SiteDelay), 1)
	}
	return &Runner{
		orch:       orch,
		newSession: newSession,
		db:         db,
		profiles:   profiles,
		cfg:        cfg,
		limiter:    limiter,
		logger:     logger,
	}
}

// RunSingle processes one site and persists the outcome.
func (r *Runner) RunSingle(ctx context.Context, siteURL string) (*types.SiteRun, error) {
	sess, err := r.newSession(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	run := r.orch.RunSite(ctx, sess, siteURL)
	r.persist(run)
	return run, nil
}

// RunBatch processes the sites on a bounded worker pool. Cancelling ctx
// stops new sites immediately; in-flight sites get the drain grace before
// their contexts are cut.
func (r *Runner) RunBatch(ctx context.Context, sites []string) []*types.SiteRun {
	workCtx, cancelWork := drainContext(ctx, drainGrace)
	defer cancelWork()

	queue := make(chan string)
	go func() {
		defer close(queue)
		for _, s := range sites {
			select {
			case queue <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	var mu sync.Mutex
	var runs []*types.SiteRun

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for site := range queue {
				if ctx.Err() != nil {
					return
				}
				if run := r.runOne(workCtx, site); run != nil {
					mu.Lock()
					runs = append(runs, run)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return runs
}

// runOne handles pacing, the freshness skip, and session lifecycle for one
// site. A nil return means the site was skipped.
func (r *Runner) runOne(ctx context.Context, siteURL string) *types.SiteRun {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil
	}

	if r.skipFresh(siteURL) {
		r.logger.Info("site skipped, recently scraped", zap.String("site", siteURL))
		return nil
	}

	sess, err := r.newSession(ctx)
	if err != nil {
		r.logger.Error("session open failed", zap.String("site", siteURL), zap.Error(err))
		return nil
	}
	defer sess.Close()

	run := r.orch.RunSite(ctx, sess, siteURL)
	r.persist(run)
	return run
}

// skipFresh reports whether the site was scraped within the refresh
// interval.
func (r *Runner) skipFresh(siteURL string) bool {
	if r.db == nil || r.cfg.Refresh <= 0 {
		return false
	}
	at, err := r.db.LastScraped(domainOf(siteURL))
	if err != nil || at.IsZero() {
		return false
	}
	return time.Since(at) < r.cfg.Refresh
}

// persist writes the JSON snapshot, then the datastore, then the profiles.
// Datastore failures are logged and never invalidate the snapshot.
func (r *Runner) persist(run *types.SiteRun) {
	if path, err := store.WriteSnapshot(r.cfg.ResultsDir, run); err != nil {
		r.logger.Error("snapshot write failed", zap.String("domain", run.Domain), zap.Error(err))
	} else {
		r.logger.Info("snapshot written", zap.String("path", path))
	}

	if r.db != nil && r.cfg.Production {
		if len(run.Results) > 0 {
			if err := r.db.SaveRun(run); err != nil {
				r.logger.Error("datastore save failed", zap.String("domain", run.Domain), zap.Error(err))
			}
		} else {
			if err := r.db.RecordFailure(run.Domain); err != nil {
				r.logger.Error("datastore failure record failed", zap.String("domain", run.Domain), zap.Error(err))
			}
		}
	}

	if r.profiles != nil {
		if err := r.profiles.Save(); err != nil {
			r.logger.Error("profile save failed", zap.Error(err))
		}
	}
}

// drainContext derives a context that outlives the parent's cancellation by
// the grace period, so in-flight work can finish cleanly.
func drainContext(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-parent.Done():
			t := time.NewTimer(grace)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
