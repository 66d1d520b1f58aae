// Package profile persists per-site knowledge between runs: the known
// leaderboard path, previously seen boards, and the advisor retry budget.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"leaderhound/internal/types"
)

// advisorBudget is how many advisor escalations a site gets before the
// budget must be reset manually.
const advisorBudget = 3

// Profile is what a previous run learned about one site.
type Profile struct {
	Domain            string              `json:"domain"`
	KnownPath         string              `json:"knownPath,omitempty"`
	Leaderboards      []types.Leaderboard `json:"leaderboards,omitempty"`
	LastSuccessMethod string              `json:"lastSuccessMethod,omitempty"`
	AdvisorAttempts   int                 `json:"advisorAttempts"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// AdvisorAllowed reports whether the advisor may be invoked for this site.
func (p *Profile) AdvisorAllowed() bool {
	return p.AdvisorAttempts < advisorBudget
}

// Store holds all site profiles, loaded once and written back with
// last-writer-wins semantics.
type Store struct {
	mu       sync.Mutex
	path     string
	profiles map[string]*Profile
}

// Open loads the profile file; a missing file starts empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path, profiles: make(map[string]*Profile)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	if err := json.Unmarshal(data, &s.profiles); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	return s, nil
}

// Get returns the profile for a domain, creating an empty one if needed.
func (s *Store) Get(domain string) *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeDomain(domain)
	p, ok := s.profiles[key]
	if !ok {
		p = &Profile{Domain: key}
		s.profiles[key] = p
	}
	return p
}

// RecordSuccess updates the profile after a run that extracted data.
func (s *Store) RecordSuccess(domain, path, method string, boards []types.Leaderboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeDomain(domain)
	p, ok := s.profiles[key]
	if !ok {
		p = &Profile{Domain: key}
		s.profiles[key] = p
	}
	if path != "" {
		p.KnownPath = path
	}
	if method != "" {
		p.LastSuccessMethod = method
	}
	if len(boards) > 0 {
		p.Leaderboards = boards
	}
	p.UpdatedAt = time.Now()
}

// RecordAdvisorAttempt burns one unit of the advisor budget.
func (s *Store) RecordAdvisorAttempt(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeDomain(domain)
	p, ok := s.profiles[key]
	if !ok {
		p = &Profile{Domain: key}
		s.profiles[key] = p
	}
	p.AdvisorAttempts++
	p.UpdatedAt = time.Now()
}

// Save writes all profiles back to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("profile dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}

func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	return d
}
