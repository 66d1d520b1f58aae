// leaderhound extracts casino affiliate leaderboards from live sites with a
// headless browser and emits cross-validated JSON results.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"leaderhound/internal/advisor"
	"leaderhound/internal/browser"
	"leaderhound/internal/bypass"
	"leaderhound/internal/collect"
	"leaderhound/internal/config"
	"leaderhound/internal/discovery"
	"leaderhound/internal/orchestrate"
	"leaderhound/internal/profile"
	"leaderhound/internal/runner"
	"leaderhound/internal/store"
)

// errUsage marks invocation errors so main can exit with code 2.
var errUsage = errors.New("usage")

var (
	flagConfig     string
	flagProduction bool
	flagWorkers    int
	flagDelayMS    int
	flagLimit      int
)

var rootCmd = &cobra.Command{
	Use:           "leaderhound",
	Short:         "Resilient leaderboard extraction engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})
	rootCmd.AddCommand(singleCmd)
	rootCmd.AddCommand(batchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errUsage) || strings.HasPrefix(err.Error(), "unknown command") {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// exactArgs validates positional arity as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s expects %d argument(s), got %d", errUsage, cmd.Name(), n, len(args))
		}
		return nil
	}
}

// app holds everything a command needs wired together.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	browser  *browser.Browser
	db       *store.Store
	profiles *profile.Store
	runner   *runner.Runner
}

// newApp loads the config and stands up the browser and the pipeline.
func newApp(ctx context.Context, production bool, workers int, delay time.Duration) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	var db *store.Store
	if production {
		db, err = store.Open(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, err
		}
	}

	profiles, err := profile.Open(cfg.Storage.ProfilesPath)
	if err != nil {
		return nil, err
	}

	keywords, err := discovery.LoadKeywords(cfg.Scrape.KeywordsFile)
	if err != nil {
		return nil, err
	}

	b, err := browser.Launch(ctx, browser.Config{
		Headless:    cfg.Browser.Headless,
		Bin:         cfg.Browser.Bin,
		DebuggerURL: cfg.Browser.DebuggerURL,
		UserAgent:   cfg.Browser.UserAgent,
	}, logger)
	if err != nil {
		return nil, err
	}

	solver := bypass.NewSolverClient(cfg.Bypass.SolverURL, cfg.Bypass.APIKey, logger)
	sessCfg := orchestrate.SessionConfig{
		Bypass:     bypass.NewHandler(solver, logger),
		Keywords:   keywords,
		NavTimeout: cfg.NavTimeout(),
		CollectOpts: collect.Options{
			Screenshot: cfg.Scrape.Screenshot,
		},
	}

	orch := orchestrate.New(orchestrate.Config{
		Profiles:    profiles,
		Advisor:     advisor.New(cfg.Advisor.BaseURL, cfg.Advisor.APIKey, logger),
		SiteNames:   cfg.Sanitize.SiteNames,
		SiteTimeout: cfg.SiteTimeout(),
	}, logger)

	factory := func(ctx context.Context) (orchestrate.Session, error) {
		return orchestrate.NewLiveSession(ctx, b, sessCfg, logger)
	}

	var dbIface runner.Datastore
	if db != nil {
		dbIface = db
	}
	if workers <= 0 {
		workers = cfg.Runner.Workers
	}
	if delay <= 0 {
		delay = cfg.SiteDelay()
	}
	r := runner.New(orch, factory, dbIface, profiles, runner.Config{
		Workers:    workers,
		SiteDelay:  delay,
		Refresh:    cfg.RefreshInterval(),
		Production: production,
		ResultsDir: cfg.Storage.ResultsDir,
	}, logger)

	if err := store.CleanupDebugLogs(cfg.Storage.DebugDir, cfg.DebugTTL()); err != nil {
		logger.Warn("debug cleanup failed", zap.Error(err))
	}

	return &app{cfg: cfg, logger: logger, browser: b, db: db, profiles: profiles, runner: r}, nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("datastore close failed", zap.Error(err))
		}
	}
	if err := a.browser.Close(); err != nil {
		a.logger.Warn("browser close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File, "stderr"}
	}
	return zc.Build()
}
