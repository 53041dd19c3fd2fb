// Package config holds all sitewalk configuration, loaded from
// environment variables with sane defaults and optionally overlaid from
// a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Crawl   CrawlConfig
	Browser BrowserConfig
	Render  RenderConfig
	Output  OutputConfig
	Server  ServerConfig
	Webhook WebhookConfig
	Log     LogConfig
}

// CrawlConfig controls frontier, scope, and termination behavior.
type CrawlConfig struct {
	// Seed is the starting URL. Required for crawl runs.
	Seed string

	// MaxPages is the page-count ceiling: the crawl stops after this
	// many pages have terminal records. Must be positive.
	MaxPages int // default: 100

	// MaxDepth is the BFS depth ceiling; links discovered at MaxDepth
	// are recorded as edges but not enqueued.
	MaxDepth int // default: 3

	// MaxAttempts is the total attempt budget per page (timeout retries).
	MaxAttempts int // default: 3

	// Workers is the number of concurrent fetch workers.
	Workers int // default: 4

	// Scope is the link eligibility policy: "host" or "subdomain".
	Scope string // default: "host"

	// AllowHosts extends the scope with an explicit host allow-list.
	AllowHosts []string

	// FetchRate is the sustained page-fetch rate across all workers.
	FetchRate float64 // default: 2.0

	// FetchBurst is the token-bucket burst for page fetches.
	FetchBurst int // default: 2

	// ProbeDeadLinks enables the post-crawl probe of unvisited edge targets.
	ProbeDeadLinks bool // default: false
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 8

	// Proxy is the proxy URL for all requests.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// RenderConfig controls per-page rendering behavior.
type RenderConfig struct {
	// Timeout is the per-attempt render deadline.
	Timeout time.Duration // default: 30s

	// Stealth toggles stealth JS injection before navigation.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to block. Stylesheets
	// and images stay enabled by default so screenshots look right.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string
}

// OutputConfig controls persisted crawl artifacts.
type OutputConfig struct {
	// Dir is the root output directory for logs and screenshots.
	Dir string // default: "crawl-out"

	// LogFile is the markdown crawl log name inside Dir.
	LogFile string // default: "crawl_log.md"

	// ScreenshotDir is the screenshot directory name inside Dir.
	ScreenshotDir string // default: "screenshots"

	// SQLitePath, if non-empty, persists the final graph to this SQLite file.
	SQLitePath string
}

// ServerConfig controls the HTTP API server (serve mode).
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// WebhookConfig controls run-completion notifications.
type WebhookConfig struct {
	// URL, if non-empty, receives crawl.completed / crawl.failed events.
	URL string

	// Secret signs the webhook body with HMAC-SHA256 when set.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Crawl: CrawlConfig{
			Seed:           os.Getenv("SITEWALK_SEED"),
			MaxPages:       envIntOr("SITEWALK_MAX_PAGES", 100),
			MaxDepth:       envIntOr("SITEWALK_MAX_DEPTH", 3),
			MaxAttempts:    envIntOr("SITEWALK_MAX_ATTEMPTS", 3),
			Workers:        envIntOr("SITEWALK_WORKERS", 4),
			Scope:          envOr("SITEWALK_SCOPE", "host"),
			AllowHosts:     envSliceOr("SITEWALK_ALLOW_HOSTS", nil),
			FetchRate:      envFloatOr("SITEWALK_FETCH_RATE", 2.0),
			FetchBurst:     envIntOr("SITEWALK_FETCH_BURST", 2),
			ProbeDeadLinks: envBoolOr("SITEWALK_PROBE_DEAD_LINKS", false),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("SITEWALK_HEADLESS", true),
			MaxPages:   envIntOr("SITEWALK_BROWSER_PAGES", 8),
			Proxy:      os.Getenv("SITEWALK_PROXY"),
			NoSandbox:  envBoolOr("SITEWALK_NO_SANDBOX", false),
			BrowserBin: os.Getenv("SITEWALK_BROWSER_BIN"),
		},
		Render: RenderConfig{
			Timeout: envDurationOr("SITEWALK_RENDER_TIMEOUT", 30*time.Second),
			Stealth: envBoolOr("SITEWALK_STEALTH", true),
			BlockedResourceTypes: envSliceOr("SITEWALK_BLOCKED_RESOURCES", []string{
				"Font", "Media",
			}),
		},
		Output: OutputConfig{
			Dir:           envOr("SITEWALK_OUTPUT_DIR", "crawl-out"),
			LogFile:       envOr("SITEWALK_LOG_FILE", "crawl_log.md"),
			ScreenshotDir: envOr("SITEWALK_SCREENSHOT_DIR", "screenshots"),
			SQLitePath:    os.Getenv("SITEWALK_SQLITE_PATH"),
		},
		Server: ServerConfig{
			Host: envOr("SITEWALK_HOST", "0.0.0.0"),
			Port: envIntOr("SITEWALK_PORT", 8080),
			Mode: envOr("SITEWALK_MODE", "release"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("SITEWALK_WEBHOOK_URL"),
			Secret: os.Getenv("SITEWALK_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("SITEWALK_LOG_LEVEL", "info"),
			Format: envOr("SITEWALK_LOG_FORMAT", "text"),
		},
	}
}

// fileConfig mirrors the YAML file layout. Every field is optional;
// zero values leave the existing configuration untouched.
type fileConfig struct {
	Crawl struct {
		Seed           string   `yaml:"seed"`
		MaxPages       int      `yaml:"max_pages"`
		MaxDepth       int      `yaml:"max_depth"`
		MaxAttempts    int      `yaml:"max_attempts"`
		Workers        int      `yaml:"workers"`
		Scope          string   `yaml:"scope"`
		AllowHosts     []string `yaml:"allow_hosts"`
		FetchRate      float64  `yaml:"fetch_rate"`
		FetchBurst     int      `yaml:"fetch_burst"`
		ProbeDeadLinks bool     `yaml:"probe_dead_links"`
	} `yaml:"crawl"`
	Render struct {
		TimeoutSeconds   int      `yaml:"timeout_seconds"`
		BlockedResources []string `yaml:"blocked_resources"`
	} `yaml:"render"`
	Output struct {
		Dir        string `yaml:"dir"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"output"`
	Webhook struct {
		URL    string `yaml:"url"`
		Secret string `yaml:"secret"`
	} `yaml:"webhook"`
}

// MergeFile overlays configuration from a YAML file onto c.
// Only fields present in the file are applied.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.Crawl.Seed != "" {
		c.Crawl.Seed = fc.Crawl.Seed
	}
	if fc.Crawl.MaxPages > 0 {
		c.Crawl.MaxPages = fc.Crawl.MaxPages
	}
	if fc.Crawl.MaxDepth > 0 {
		c.Crawl.MaxDepth = fc.Crawl.MaxDepth
	}
	if fc.Crawl.MaxAttempts > 0 {
		c.Crawl.MaxAttempts = fc.Crawl.MaxAttempts
	}
	if fc.Crawl.Workers > 0 {
		c.Crawl.Workers = fc.Crawl.Workers
	}
	if fc.Crawl.Scope != "" {
		c.Crawl.Scope = fc.Crawl.Scope
	}
	if len(fc.Crawl.AllowHosts) > 0 {
		c.Crawl.AllowHosts = fc.Crawl.AllowHosts
	}
	if fc.Crawl.FetchRate > 0 {
		c.Crawl.FetchRate = fc.Crawl.FetchRate
	}
	if fc.Crawl.FetchBurst > 0 {
		c.Crawl.FetchBurst = fc.Crawl.FetchBurst
	}
	if fc.Crawl.ProbeDeadLinks {
		c.Crawl.ProbeDeadLinks = true
	}
	if fc.Render.TimeoutSeconds > 0 {
		c.Render.Timeout = time.Duration(fc.Render.TimeoutSeconds) * time.Second
	}
	if len(fc.Render.BlockedResources) > 0 {
		c.Render.BlockedResourceTypes = fc.Render.BlockedResources
	}
	if fc.Output.Dir != "" {
		c.Output.Dir = fc.Output.Dir
	}
	if fc.Output.SQLitePath != "" {
		c.Output.SQLitePath = fc.Output.SQLitePath
	}
	if fc.Webhook.URL != "" {
		c.Webhook.URL = fc.Webhook.URL
	}
	if fc.Webhook.Secret != "" {
		c.Webhook.Secret = fc.Webhook.Secret
	}
	return nil
}

// Validate checks for configuration errors that are fatal to a run.
// These surface before any crawling begins.
func (c *Config) Validate() error {
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("config: max pages must be positive, got %d", c.Crawl.MaxPages)
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("config: max depth must be non-negative, got %d", c.Crawl.MaxDepth)
	}
	if c.Crawl.MaxAttempts <= 0 {
		return fmt.Errorf("config: max attempts must be positive, got %d", c.Crawl.MaxAttempts)
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Crawl.Workers)
	}
	if c.Render.Timeout <= 0 {
		return fmt.Errorf("config: render timeout must be positive, got %s", c.Render.Timeout)
	}
	switch c.Crawl.Scope {
	case "host", "subdomain":
	default:
		return fmt.Errorf("config: unknown scope %q (want host or subdomain)", c.Crawl.Scope)
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
