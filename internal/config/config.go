package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Shadow    ShadowConfig    `yaml:"shadow"`
	Guardrail GuardrailConfig `yaml:"guardrail"`
	Report    ReportConfig    `yaml:"report"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Topics    map[string][]string `yaml:"topics"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures ingestion and scoring intervals.
type ScheduleConfig struct {
	IngestInterval string `yaml:"ingest_interval"`
	ScoreInterval  string `yaml:"score_interval"`
}

// ParseIngestInterval returns the ingest interval as time.Duration.
func (s ScheduleConfig) ParseIngestInterval() time.Duration {
	d, err := time.ParseDuration(s.IngestInterval)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ParseScoreInterval returns the scoring interval as time.Duration.
func (s ScheduleConfig) ParseScoreInterval() time.Duration {
	d, err := time.ParseDuration(s.ScoreInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// IngestConfig holds feed and collector configuration.
type IngestConfig struct {
	Feeds      []FeedItem       `yaml:"feeds"`
	ArXiv      ArXivConfig      `yaml:"arxiv"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
	Filter     FilterConfig     `yaml:"filter"`
	MaxAge     string           `yaml:"max_age"`
}

// HackerNewsConfig for the Hacker News collector.
type HackerNewsConfig struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit"`
}

// FilterConfig configures content relevance filtering.
type FilterConfig struct {
	ExtraKeywords   []string `yaml:"extra_keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// ParseMaxAge returns how far back collected entries may reach.
func (i IngestConfig) ParseMaxAge() time.Duration {
	d, err := time.ParseDuration(i.MaxAge)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ArXivConfig for the ArXiv collector.
type ArXivConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Categories []string `yaml:"categories"`
	MaxResults int      `yaml:"max_results"`
}

// ShadowConfig configures the optional LLM shadow scorer.
type ShadowConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "openai" or "anthropic"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// GuardrailConfig configures label-rate monitoring.
type GuardrailConfig struct {
	Windows []int `yaml:"windows"` // trailing windows in days
}

// ReportConfig configures the calibration report.
type ReportConfig struct {
	Limit        int  `yaml:"limit"`
	EligibleOnly bool `yaml:"eligible_only"`
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./impactgate.db"},
		Schedule: ScheduleConfig{
			IngestInterval: "30m",
			ScoreInterval:  "1h",
		},
		Ingest: IngestConfig{
			Feeds: []FeedItem{
				{Name: "TechCrunch AI", URL: "https://techcrunch.com/category/artificial-intelligence/feed/"},
				{Name: "The Verge AI", URL: "https://www.theverge.com/rss/ai-artificial-intelligence/index.xml"},
				{Name: "VentureBeat AI", URL: "https://venturebeat.com/category/ai/feed/"},
				{Name: "MIT Tech Review", URL: "https://www.technologyreview.com/feed/"},
			},
			ArXiv: ArXivConfig{
				Enabled:    true,
				Categories: []string{"cs.AI", "cs.CL", "cs.CV", "cs.LG"},
				MaxResults: 50,
			},
			HackerNews: HackerNewsConfig{Enabled: true, Limit: 100},
			MaxAge:     "168h",
		},
		Shadow: ShadowConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Guardrail: GuardrailConfig{Windows: []int{7, 30}},
		Report:    ReportConfig{Limit: 20, EligibleOnly: true},
		Alerts:    AlertsConfig{},
		Server:    ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IMPACTGATE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Shadow.APIKey = v
		cfg.Shadow.Enabled = true
		cfg.Shadow.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Shadow.APIKey = v
		cfg.Shadow.Enabled = true
		cfg.Shadow.Provider = "anthropic"
	}
}
