// Package store persists extraction output: an SQLite datastore keyed by
// site, cycle, and snapshot, plus per-site JSON snapshots under
// results/current. Datastore failures are reported to the caller and never
// block the JSON snapshot.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"leaderhound/internal/types"
)

// maxUsernameLen bounds persisted usernames.
const maxUsernameLen = 100

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open initializes the SQLite database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	siteTable := `
	CREATE TABLE IF NOT EXISTS leaderboard_sites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		last_scraped_at DATETIME,
		error_count INTEGER NOT NULL DEFAULT 0,
		UNIQUE(domain)
	);
	CREATE INDEX IF NOT EXISTS idx_sites_domain ON leaderboard_sites(domain);
	`

	cycleTable := `
	CREATE TABLE IF NOT EXISTS leaderboard_cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_id INTEGER NOT NULL REFERENCES leaderboard_sites(id),
		name TEXT NOT NULL,
		board_type TEXT NOT NULL DEFAULT 'current',
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(site_id, name, board_type)
	);
	CREATE INDEX IF NOT EXISTS idx_cycles_site ON leaderboard_cycles(site_id);
	`

	snapshotTable := `
	CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id INTEGER NOT NULL REFERENCES leaderboard_cycles(id),
		extraction_id TEXT NOT NULL,
		confidence REAL NOT NULL,
		extraction_method TEXT NOT NULL,
		total_wager REAL NOT NULL DEFAULT 0,
		prize_pool REAL NOT NULL DEFAULT 0,
		scraped_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_cycle ON leaderboard_snapshots(cycle_id);
	`

	entryTable := `
	CREATE TABLE IF NOT EXISTS leaderboard_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		snapshot_id INTEGER NOT NULL REFERENCES leaderboard_snapshots(id),
		rank INTEGER NOT NULL,
		username TEXT NOT NULL,
		wager REAL NOT NULL DEFAULT 0,
		prize REAL NOT NULL DEFAULT 0,
		verified INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_entries_snapshot ON leaderboard_entries(snapshot_id);
	`

	for _, table := range []string{siteTable, cycleTable, snapshotTable, entryTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes one site run: the site row is upserted, each result gets a
// cycle, a snapshot, and its entries. Usernames are sanitized before
// persistence.
func (s *Store) SaveRun(run *types.SiteRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	siteID, err := upsertSite(tx, run)
	if err != nil {
		return err
	}

	for i := range run.Results {
		if err := saveResult(tx, siteID, run.ExtractionID, &run.Results[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// RecordFailure bumps the site's error counter without touching the scrape
// timestamp.
func (s *Store) RecordFailure(domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO leaderboard_sites (domain, error_count) VALUES (?, 1)
		ON CONFLICT(domain) DO UPDATE SET error_count = error_count + 1`,
		domain)
	if err != nil {
		return fmt.Errorf("record failure for %s: %w", domain, err)
	}
	return nil
}

// LastScraped returns when the domain was last successfully scraped, or the
// zero time when never.
func (s *Store) LastScraped(domain string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var at sql.NullTime
	err := s.db.QueryRow(
		`SELECT last_scraped_at FROM leaderboard_sites WHERE domain = ?`,
		domain).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last scraped for %s: %w", domain, err)
	}
	if !at.Valid {
		return time.Time{}, nil
	}
	return at.Time, nil
}

func upsertSite(tx *sql.Tx, run *types.SiteRun) (int64, error) {
	_, err := tx.Exec(`
		INSERT INTO leaderboard_sites (domain, last_scraped_at, error_count)
		VALUES (?, ?, 0)
		ON CONFLICT(domain) DO UPDATE SET last_scraped_at = excluded.last_scraped_at, error_count = 0`,
		run.Domain, run.CompletedAt)
	if err != nil {
		return 0, fmt.Errorf("upsert site %s: %w", run.Domain, err)
	}

	var id int64
	if err := tx.QueryRow(`SELECT id FROM leaderboard_sites WHERE domain = ?`, run.Domain).Scan(&id); err != nil {
		return 0, fmt.Errorf("site id for %s: %w", run.Domain, err)
	}
	return id, nil
}

func saveResult(tx *sql.Tx, siteID int64, extractionID string, r *types.LeaderboardResult) error {
	_, err := tx.Exec(`
		INSERT INTO leaderboard_cycles (site_id, name, board_type) VALUES (?, ?, ?)
		ON CONFLICT(site_id, name, board_type) DO NOTHING`,
		siteID, r.Name, string(r.Type))
	if err != nil {
		return fmt.Errorf("cycle for %s: %w", r.Name, err)
	}

	var cycleID int64
	err = tx.QueryRow(
		`SELECT id FROM leaderboard_cycles WHERE site_id = ? AND name = ? AND board_type = ?`,
		siteID, r.Name, string(r.Type)).Scan(&cycleID)
	if err != nil {
		return fmt.Errorf("cycle id for %s: %w", r.Name, err)
	}

	res, err := tx.Exec(`
		INSERT INTO leaderboard_snapshots (cycle_id, extraction_id, confidence, extraction_method, total_wager, prize_pool, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cycleID, extractionID, r.Confidence, string(r.Source), r.TotalWagered, r.TotalPrizePool, r.ScrapedAt)
	if err != nil {
		return fmt.Errorf("snapshot for %s: %w", r.Name, err)
	}
	snapID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id for %s: %w", r.Name, err)
	}

	for _, e := range r.Entries {
		_, err := tx.Exec(`
			INSERT INTO leaderboard_entries (snapshot_id, rank, username, wager, prize, verified)
			VALUES (?, ?, ?, ?, ?, ?)`,
			snapID, e.Rank, SanitizeUsername(e.Username), e.Wager, e.Prize, r.Validation.Valid)
		if err != nil {
			return fmt.Errorf("entry rank %d for %s: %w", e.Rank, r.Name, err)
		}
	}
	return nil
}

// SanitizeUsername makes a username safe to persist: control characters are
// stripped, unpaired surrogates removed, backslash hex-escape sequences
// rejected outright, and the result truncated to 100 characters. Anything
// that ends up empty becomes "unknown".
func SanitizeUsername(name string) string {
	if hasHexEscape(name) {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || r == 0x7F {
			continue
		}
		// Surrogate halves and invalid bytes both decode to RuneError.
		if r == utf8.RuneError || (r >= 0xD800 && r <= 0xDFFF) {
			continue
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())
	if runes := []rune(out); len(runes) > maxUsernameLen {
		out = string(runes[:maxUsernameLen])
	}
	if out == "" {
		return "unknown"
	}
	return out
}

// hasHexEscape detects literal backslash escape sequences, \x41 style,
// which indicate a mangled upstream encoding rather than a real name.
func hasHexEscape(name string) bool {
	for i := 0; i+1 < len(name); i++ {
		if name[i] != '\\' {
			continue
		}
		switch name[i+1] {
		case 'x', 'X', 'u', 'U':
			if i+2 < len(name) && isHexDigit(name[i+2]) {
				return true
			}
		}
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
