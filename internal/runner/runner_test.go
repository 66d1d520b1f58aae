package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"leaderhound/internal/collect"
	"leaderhound/internal/nettap"
	"leaderhound/internal/orchestrate"
	"leaderhound/internal/profile"
	"leaderhound/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubSession feeds the orchestrator one extractable leaderboard.
type stubSession struct{}

func (stubSession) Position(ctx context.Context, baseURL, knownPath string) error { return nil }

func (stubSession) Enumerate(ctx context.Context, siteURL string, known []types.Leaderboard) (types.Discovery, error) {
	return types.Discovery{Leaderboards: []types.Leaderboard{{
		Name:   "default",
		URL:    siteURL + "/leaderboard",
		Method: types.MethodURLNavigation,
		Type:   types.TypeCurrent,
	}}}, nil
}

func (stubSession) Navigate(ctx context.Context, target string) error { return nil }
func (stubSession) CurrentURL() string                                { return "" }
func (stubSession) ClickSwitcher(ctx context.Context, sw *types.Switcher) error {
	return nil
}
func (stubSession) ClickByText(ctx context.Context, text string) error { return nil }
func (stubSession) SelectMaximumEntries(ctx context.Context) bool      { return false }
func (stubSession) WaitReady(ctx context.Context)                      {}
func (stubSession) ClickShowMore(ctx context.Context) bool             { return false }

func (stubSession) Collect(ctx context.Context) (*collect.Capture, error) {
	return &collect.Capture{
		URL:         "https://example.com/leaderboard",
		CollectedAt: time.Now(),
		Responses: []nettap.CapturedResponse{{
			URL:  "https://example.com/api/lb",
			Kind: nettap.KindJSON,
			Body: `{"entries":[{"rank":1,"username":"Alpha","wager":5000},{"rank":2,"username":"Beta","wager":3000}]}`,
		}},
	}, nil
}

func (stubSession) FetchInPage(ctx context.Context, url string) (string, error) { return "", nil }
func (stubSession) ClearBuffer()                                                {}
func (stubSession) Close()                                                      {}

// fakeDB records datastore calls.
type fakeDB struct {
	mu          sync.Mutex
	saved       []string
	failures    []string
	lastScraped map[string]time.Time
}

func (f *fakeDB) SaveRun(run *types.SiteRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, run.Domain)
	return nil
}

func (f *fakeDB) RecordFailure(domain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, domain)
	return nil
}

func (f *fakeDB) LastScraped(domain string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastScraped[domain], nil
}

func newTestRunner(t *testing.T, db Datastore, cfg Config) *Runner {
	t.Helper()
	profiles, err := profile.Open(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, err)
	orch := orchestrate.New(orchestrate.Config{Profiles: profiles}, zap.NewNop())
	factory := func(ctx context.Context) (orchestrate.Session, error) { return stubSession{}, nil }
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = t.TempDir()
	}
	return New(orch, factory, db, profiles, cfg, zap.NewNop())
}

func TestRunSingleWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(t, nil, Config{ResultsDir: dir})

	run, err := r.RunSingle(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Len(t, run.Results, 1)

	_, err = os.Stat(filepath.Join(dir, "results", "current", "example.com.json"))
	assert.NoError(t, err)
}

func TestRunBatchProcessesAllSites(t *testing.T) {
	db := &fakeDB{}
	r := newTestRunner(t, db, Config{Workers: 2, Production: true})

	runs := r.RunBatch(context.Background(), []string{
		"https://a.example.com",
		"https://b.example.com",
		"https://c.example.com",
	})
	require.Len(t, runs, 3)
	assert.Len(t, db.saved, 3)
	assert.Empty(t, db.failures)
}

func TestRunBatchSkipsFreshSites(t *testing.T) {
	db := &fakeDB{lastScraped: map[string]time.Time{
		"a.example.com": time.Now().Add(-10 * time.Minute),
	}}
	r := newTestRunner(t, db, Config{Workers: 1, Refresh: time.Hour, Production: true})

	runs := r.RunBatch(context.Background(), []string{
		"https://a.example.com",
		"https://b.example.com",
	})
	require.Len(t, runs, 1)
	assert.Equal(t, "b.example.com", runs[0].Domain)
}

func TestRunBatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(t, nil, Config{Workers: 1})
	runs := r.RunBatch(ctx, []string{"https://a.example.com", "https://b.example.com"})
	assert.Empty(t, runs)
}

func TestDrainContextOutlivesParent(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := drainContext(parent, 200*time.Millisecond)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
		t.Fatal("drain context cancelled immediately")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("drain context never cancelled")
	}
}

func TestLoadSites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "websites.txt")
	require.NoError(t, os.WriteFile(path, []byte(`# fleet
https://a.example.com

http://b.example.com
not-a-url
ftp://nope.example.com
`), 0o644))

	sites, err := LoadSites(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "http://b.example.com"}, sites)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "a.example.com", domainOf("https://www.a.example.com/x"))
	assert.Equal(t, "raw", domainOf("raw"))
}
