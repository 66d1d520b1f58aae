// Package config holds all leaderhound configuration: a YAML file with
// environment variable overrides for the secrets and service URLs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all leaderhound configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Bypass   BypassConfig   `yaml:"bypass"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Storage  StorageConfig  `yaml:"storage"`
	Runner   RunnerConfig   `yaml:"runner"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sanitize SanitizeConfig `yaml:"sanitize"`
}

// BrowserConfig configures the shared headless browser.
type BrowserConfig struct {
	Headless    bool   `yaml:"headless"`
	Bin         string `yaml:"bin"`
	DebuggerURL string `yaml:"debugger_url"`
	UserAgent   string `yaml:"user_agent"`
}

// BypassConfig configures the external challenge solver.
type BypassConfig struct {
	SolverURL string `yaml:"solver_url"`
	APIKey    string `yaml:"api_key"`
}

// AdvisorConfig configures the optional remote evaluator.
type AdvisorConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// ScrapeConfig tunes the per-site workflow.
type ScrapeConfig struct {
	KeywordsFile string `yaml:"keywords_file"`
	NavTimeout   string `yaml:"nav_timeout"`
	SiteTimeout  string `yaml:"site_timeout"`
	Screenshot   bool   `yaml:"screenshot"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ResultsDir   string `yaml:"results_dir"`
	ProfilesPath string `yaml:"profiles_path"`
	DebugDir     string `yaml:"debug_dir"`
	DebugTTL     string `yaml:"debug_ttl"`
}

// RunnerConfig configures the batch worker pool.
type RunnerConfig struct {
	Workers         int    `yaml:"workers"`
	SiteDelay       string `yaml:"site_delay"`
	RefreshInterval string `yaml:"refresh_interval"`
	WebsitesFile    string `yaml:"websites_file"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`
}

// SanitizeConfig lists usernames that are really the site itself.
type SanitizeConfig struct {
	SiteNames []string `yaml:"site_names"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless: true,
		},
		Scrape: ScrapeConfig{
			KeywordsFile: "keywords.txt",
			NavTimeout:   "30s",
			SiteTimeout:  "5m",
			Screenshot:   true,
		},
		Storage: StorageConfig{
			DatabasePath: "data/leaderhound.db",
			ResultsDir:   ".",
			ProfilesPath: "data/profiles.json",
			DebugDir:     "debug",
			DebugTTL:     "48h",
		},
		Runner: RunnerConfig{
			Workers:         3,
			SiteDelay:       "2s",
			RefreshInterval: "1h",
			WebsitesFile:    "websites.txt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Sanitize: SanitizeConfig{
			SiteNames: []string{
				"stake", "gamdom", "rollbit", "shuffle", "roobet",
				"hypedrop", "packdraw", "keydrop", "csgoroll", "rustclash",
			},
		},
	}
}

// Load loads configuration from a YAML file. A missing file returns the
// defaults; environment variables override either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("SOLVER_URL"); url != "" {
		c.Bypass.SolverURL = url
	}
	if key := os.Getenv("SOLVER_API_KEY"); key != "" {
		c.Bypass.APIKey = key
	}
	if url := os.Getenv("ADVISOR_URL"); url != "" {
		c.Advisor.BaseURL = url
	}
	if key := os.Getenv("ADVISOR_API_KEY"); key != "" {
		c.Advisor.APIKey = key
	}
	if path := os.Getenv("LEADERHOUND_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
	if ms := os.Getenv("SITE_TIMEOUT_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n > 0 {
			c.Scrape.SiteTimeout = (time.Duration(n) * time.Millisecond).String()
		}
	}
}

// SiteTimeout returns the per-site deadline as a duration.
func (c *Config) SiteTimeout() time.Duration {
	return parseDuration(c.Scrape.SiteTimeout, 5*time.Minute)
}

// NavTimeout returns the per-navigation deadline as a duration.
func (c *Config) NavTimeout() time.Duration {
	return parseDuration(c.Scrape.NavTimeout, 30*time.Second)
}

// SiteDelay returns the pause between sites per worker.
func (c *Config) SiteDelay() time.Duration {
	return parseDuration(c.Runner.SiteDelay, 2*time.Second)
}

// RefreshInterval returns how fresh a previous scrape must be to skip.
func (c *Config) RefreshInterval() time.Duration {
	return parseDuration(c.Runner.RefreshInterval, time.Hour)
}

// DebugTTL returns the debug artifact retention window.
func (c *Config) DebugTTL() time.Duration {
	return parseDuration(c.Storage.DebugTTL, 48*time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
