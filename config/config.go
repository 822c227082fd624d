// Package config parses the leadscout YAML configuration file. Secrets
// (bot token, API keys, database URL) never live here; they come from the
// environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backends selectable via the config file.
const (
	BackendReddit    = "reddit"
	BackendScrapeJob = "scrapejob"
	BackendBrowser   = "browser"
)

// Config is the top-level leadscout configuration.
type Config struct {
	// Backend selects the post source: reddit | scrapejob | browser.
	Backend string `yaml:"backend"`
	// SettingsPath is where the operator settings JSON lives.
	SettingsPath string `yaml:"settings_path"`

	PollInterval time.Duration `yaml:"poll_interval"`
	PostDelay    time.Duration `yaml:"post_delay"`
	FetchLimit   int           `yaml:"fetch_limit"`

	Reddit     RedditConfig     `yaml:"reddit"`
	ScrapeJob  ScrapeJobConfig  `yaml:"scrapejob"`
	Browser    BrowserConfig    `yaml:"browser"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Admin      AdminConfig      `yaml:"admin"`
	Storage    StorageConfig    `yaml:"storage"`
}

// RedditConfig tunes the public listing backend.
type RedditConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// ScrapeJobConfig tunes the managed scrape-service backend.
type ScrapeJobConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// BrowserConfig tunes the headless-browser backend.
type BrowserConfig struct {
	Remote      string        `yaml:"remote"`
	SearchURL   string        `yaml:"search_url"`
	Scrolls     int           `yaml:"scrolls"`
	ScrollPause time.Duration `yaml:"scroll_pause"`
	NavTimeout  time.Duration `yaml:"nav_timeout"`
}

// ClassifierConfig tunes the relevance classifier.
type ClassifierConfig struct {
	Model             string `yaml:"model"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// AdminConfig controls the local admin HTTP endpoint. Empty listen
// disables it.
type AdminConfig struct {
	Listen string `yaml:"listen"`
}

// StorageConfig controls lead history persistence. SQLitePath is ignored
// when DATABASE_URL points at Postgres; empty disables history entirely.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// DefaultConfig returns the baseline a config file merges over.
func DefaultConfig() *Config {
	return &Config{
		Backend:      BackendReddit,
		SettingsPath: "settings.json",
		PollInterval: 60 * time.Second,
		PostDelay:    2 * time.Second,
		FetchLimit:   25,
		Storage:      StorageConfig{SQLitePath: "leadscout.db"},
	}
}

// LoadFile reads a YAML configuration file merged over defaults. A missing
// file yields pure defaults so the binary runs with zero configuration.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.SettingsPath == "" {
		c.SettingsPath = d.SettingsPath
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.PostDelay <= 0 {
		c.PostDelay = d.PostDelay
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = d.FetchLimit
	}
}

// Validate checks that the selected backend is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendReddit, BackendBrowser:
	case BackendScrapeJob:
		if c.ScrapeJob.Endpoint == "" {
			return fmt.Errorf("scrapejob backend requires scrapejob.endpoint")
		}
	default:
		return fmt.Errorf("unsupported backend %q (use reddit, scrapejob or browser)", c.Backend)
	}
	return nil
}
