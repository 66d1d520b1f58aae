// Package types defines the canonical data model shared by every stage of
// the extraction pipeline: entries, per-leaderboard results, site runs, and
// the cross-validation report produced by fusion.
package types

import "time"

// LeaderboardType distinguishes the live leaderboard from archived cycles.
type LeaderboardType string

const (
	TypeCurrent  LeaderboardType = "current"
	TypePrevious LeaderboardType = "previous"
)

// Source tags which extraction strategy produced a set of entries.
type Source string

const (
	SourceAPI       Source = "api"
	SourceMarkdown  Source = "markdown"
	SourceDOM       Source = "dom"
	SourceGeometric Source = "geometric"
	SourceAdvisor   Source = "advisor"
)

// HiddenUsername is the sentinel for rows that carry a rank and amounts but
// no visible name (avatar-only rows).
const HiddenUsername = "[hidden]"

// Entry is one ranked leaderboard row in canonical form.
// Rank 0 means "unassigned" and is only legal while a strategy is still
// parsing; emitted results never contain it.
type Entry struct {
	Rank            int             `json:"rank"`
	Username        string          `json:"username"`
	Wager           float64         `json:"wager"`
	Prize           float64         `json:"prize"`
	ExtractedAt     time.Time       `json:"extractedAt"`
	LeaderboardType LeaderboardType `json:"leaderboard_type"`
}

// Validation is the dataset validator's verdict for one result.
type Validation struct {
	Valid             bool     `json:"valid"`
	Completeness      bool     `json:"completeness"`
	Sanity            bool     `json:"sanity"`
	StrategyAgreement bool     `json:"strategyAgreement"`
	ConfidencePenalty float64  `json:"confidencePenalty"`
	Issues            []string `json:"issues,omitempty"`
}

// FieldAgreement holds per-field agreement ratios across strategies.
type FieldAgreement struct {
	Username float64 `json:"username"`
	Rank     float64 `json:"rank"`
	Wager    float64 `json:"wager"`
	Prize    float64 `json:"prize"`
}

// Discrepancy records a field-level disagreement between two sources for
// one aligned entry.
type Discrepancy struct {
	Key    string            `json:"key"`
	Field  string            `json:"field"`
	Values map[string]string `json:"values"`
}

// Entry agreement statuses.
const (
	AgreementAgreed       = "agreed"
	AgreementDisputed     = "disputed"
	AgreementSingleSource = "single_source"
)

// EntryAgreement summarizes how the strategies voted on one entry.
type EntryAgreement struct {
	Status  string   `json:"status"`
	Sources []string `json:"sources"`
}

// CrossValidation is the fusion layer's report: how well the strategies
// agreed and which source the fused result should be built from.
type CrossValidation struct {
	OverallAgreement  float64                   `json:"overallAgreement"`
	FieldAgreement    FieldAgreement            `json:"fieldAgreement"`
	Discrepancies     []Discrepancy             `json:"discrepancies,omitempty"`
	EntryAgreement    map[string]EntryAgreement `json:"entryAgreement,omitempty"`
	RecommendedSource Source                    `json:"recommendedSource"`
	ConfidenceAdjust  float64                   `json:"confidenceAdjust"`
	SingleSource      bool                      `json:"singleSource"`
}

// LeaderboardResult is one extracted leaderboard at one site.
type LeaderboardResult struct {
	ID              string           `json:"id"`
	ExtractionID    string           `json:"extractionId"`
	Name            string           `json:"name"`
	URL             string           `json:"url"`
	Type            LeaderboardType  `json:"type"`
	Source          Source           `json:"source"`
	Entries         []Entry          `json:"entries"`
	Prizes          []float64        `json:"prizes,omitempty"`
	TotalPrizePool  float64          `json:"totalPrizePool"`
	TotalWagered    float64          `json:"totalWagered"`
	Confidence      float64          `json:"confidence"`
	ScrapedAt       time.Time        `json:"scrapedAt"`
	Validation      Validation       `json:"validation"`
	CrossValidation *CrossValidation `json:"crossValidation,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// SiteMetadata aggregates run counters for one site.
type SiteMetadata struct {
	LeaderboardsDiscovered int      `json:"leaderboardsDiscovered"`
	LeaderboardsScraped    int      `json:"leaderboardsScraped"`
	StrategiesUsed         []string `json:"strategiesUsed"`
}

// AddStrategy appends a strategy name preserving first-seen order.
func (m *SiteMetadata) AddStrategy(name string) {
	for _, s := range m.StrategiesUsed {
		if s == name {
			return
		}
	}
	m.StrategiesUsed = append(m.StrategiesUsed, name)
}

// SiteRun is the record of one scraping pass over one domain. The
// orchestrator owns it while the site is in flight; after emission it is
// never mutated again.
type SiteRun struct {
	Domain       string              `json:"domain"`
	ExtractionID string              `json:"extractionId"`
	StartedAt    time.Time           `json:"startedAt"`
	CompletedAt  time.Time           `json:"completedAt"`
	Results      []LeaderboardResult `json:"results"`
	Errors       []string            `json:"errors"`
	Warnings     []string            `json:"warnings"`
	TimedOut     bool                `json:"timedOut,omitempty"`
	Metadata     SiteMetadata        `json:"metadata"`
}

// Switcher is a clickable element that selects one of several leaderboards
// on a page, tagged with the keyword that matched it.
type Switcher struct {
	Keyword        string  `json:"keyword"`
	X              float64 `json:"x,omitempty"`
	Y              float64 `json:"y,omitempty"`
	HasCoordinates bool    `json:"hasCoordinates"`
	Priority       int     `json:"priority"`
	FoundOnPath    string  `json:"foundOnPath"`
}

// Leaderboard access methods.
const (
	MethodSwitcherClick = "switcher-click"
	MethodDetectedName  = "detected-name"
	MethodURLNavigation = "url-navigation"
	MethodProfileKnown  = "profile-known"
)

// Leaderboard is one discovered leaderboard target and the method by which
// the orchestrator should reach it.
type Leaderboard struct {
	Name     string          `json:"name"`
	URL      string          `json:"url,omitempty"`
	Method   string          `json:"method"`
	Switcher *Switcher       `json:"switcher,omitempty"`
	Type     LeaderboardType `json:"type"`
}

// Discovery is the output of the discovery scan for one site.
type Discovery struct {
	Leaderboards []Leaderboard `json:"leaderboards"`
	Switchers    []Switcher    `json:"switchers,omitempty"`
	URLPattern   string        `json:"urlPattern,omitempty"`
}
