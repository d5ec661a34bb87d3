// Package config loads deployment configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sparklabs/spark/internal/domain"
)

// Config holds all configuration for the service and the scanner CLI. Every
// tuning knob of the pipeline lives here rather than as a literal in the
// core: thresholds and formulas have been retuned repeatedly and must stay
// swappable per deployment.
type Config struct {
	// Port is the HTTP server port.
	Port int `yaml:"port"`

	// DatabasePath is the SQLite file path.
	DatabasePath string `yaml:"database_path"`

	Score struct {
		// Variant selects the scoring formula: "views" (default) or
		// "classic".
		Variant string `yaml:"variant"`

		// AgeCutoffMinutes forces scores to zero past this post age.
		AgeCutoffMinutes int `yaml:"age_cutoff_minutes"`

		// Threshold is the generation gate.
		Threshold int `yaml:"threshold"`

		// ReplyNoiseThreshold drops items with this many replies or more.
		ReplyNoiseThreshold int `yaml:"reply_noise_threshold"`
	} `yaml:"score"`

	Scan struct {
		TargetUniqueCount   int `yaml:"target_unique_count"`
		MaxAttempts         int `yaml:"max_attempts"`
		SettleDelayMillis   int `yaml:"settle_delay_millis"`
		DispatchDelayMillis int `yaml:"dispatch_delay_millis"`
		TopK                int `yaml:"top_k"`
	} `yaml:"scan"`

	Generation struct {
		// Models is the preference-ordered model list, best first.
		Models []string `yaml:"models"`

		// Credentials is the ordered API key list. Usually supplied via
		// SPARK_GEMINI_API_KEYS rather than the file.
		Credentials []string `yaml:"credentials"`

		// SuggestionCount is 2 or 3 depending on the prompt profile.
		SuggestionCount int `yaml:"suggestion_count"`
	} `yaml:"generation"`

	Browser struct {
		// ControlURL is the DevTools websocket of an existing Chrome.
		// Empty means launch a local headless browser.
		ControlURL string `yaml:"control_url"`

		// TimelineURL is the feed page to scan.
		TimelineURL string `yaml:"timeline_url"`

		// ScrollFraction is how much of one screenful each advance scrolls.
		ScrollFraction float64 `yaml:"scroll_fraction"`
	} `yaml:"browser"`
}

// ScoreConfig returns the shared scoring contract. The ingestion boundary
// and the orchestrator must both derive their gate from this one value so
// the two computations cannot drift.
func (c *Config) ScoreConfig() domain.ScoreConfig {
	variant := domain.ScoreVariantViews
	if c.Score.Variant == string(domain.ScoreVariantClassic) {
		variant = domain.ScoreVariantClassic
	}
	return domain.ScoreConfig{
		Variant:          variant,
		AgeCutoffMinutes: c.Score.AgeCutoffMinutes,
	}
}

// ExtractorConfig returns the candidate-extraction parameters.
func (c *Config) ExtractorConfig() domain.ExtractorConfig {
	return domain.ExtractorConfig{
		Score:               c.ScoreConfig(),
		ReplyNoiseThreshold: c.Score.ReplyNoiseThreshold,
	}
}

// ScanConfig returns the timeline-scan parameters.
func (c *Config) ScanConfig() domain.ScanConfig {
	return domain.ScanConfig{
		TargetUniqueCount: c.Scan.TargetUniqueCount,
		MaxAttempts:       c.Scan.MaxAttempts,
		SettleDelay:       time.Duration(c.Scan.SettleDelayMillis) * time.Millisecond,
		DispatchDelay:     time.Duration(c.Scan.DispatchDelayMillis) * time.Millisecond,
		TopK:              c.Scan.TopK,
	}
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Port = 3000
	cfg.DatabasePath = "spark.db"
	cfg.Score.Variant = string(domain.ScoreVariantViews)
	cfg.Score.AgeCutoffMinutes = 120
	cfg.Score.Threshold = 200
	cfg.Score.ReplyNoiseThreshold = 20
	cfg.Scan.TargetUniqueCount = 50
	cfg.Scan.MaxAttempts = 100
	cfg.Scan.SettleDelayMillis = 1500
	cfg.Scan.DispatchDelayMillis = 3000
	cfg.Scan.TopK = 3
	cfg.Generation.Models = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	cfg.Generation.SuggestionCount = 3
	cfg.Browser.TimelineURL = "https://x.com/home"
	cfg.Browser.ScrollFraction = 0.8
	return cfg
}

// Load reads configuration from an optional YAML file at path, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Scan.TopK <= 0 {
		return nil, fmt.Errorf("scan.top_k must be positive")
	}
	if len(cfg.Generation.Models) == 0 {
		return nil, fmt.Errorf("generation.models must not be empty")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if p := os.Getenv("SPARK_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid SPARK_PORT: %w", err)
		}
		cfg.Port = port
	}
	if db := os.Getenv("SPARK_DB"); db != "" {
		cfg.DatabasePath = db
	}
	if t := os.Getenv("SPARK_SCORE_THRESHOLD"); t != "" {
		threshold, err := strconv.Atoi(t)
		if err != nil {
			return fmt.Errorf("invalid SPARK_SCORE_THRESHOLD: %w", err)
		}
		cfg.Score.Threshold = threshold
	}
	if v := os.Getenv("SPARK_SCORE_VARIANT"); v != "" {
		cfg.Score.Variant = v
	}
	if keys := os.Getenv("SPARK_GEMINI_API_KEYS"); keys != "" {
		cfg.Generation.Credentials = splitList(keys)
	}
	if models := os.Getenv("SPARK_GEMINI_MODELS"); models != "" {
		cfg.Generation.Models = splitList(models)
	}
	if u := os.Getenv("SPARK_BROWSER_URL"); u != "" {
		cfg.Browser.ControlURL = u
	}
	if u := os.Getenv("SPARK_TIMELINE_URL"); u != "" {
		cfg.Browser.TimelineURL = u
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
