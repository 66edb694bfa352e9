package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// CrawlerConfig holds worker-wide crawl defaults. Per-job settings from the
// job's settings snapshot take precedence over these.
type CrawlerConfig struct {
	UserAgent        string `yaml:"userAgent"`
	MaxPagesDefault  int    `yaml:"maxPagesDefault"`
	MaxDepthDefault  int    `yaml:"maxDepthDefault"`
	CrawlDelayMs     int    `yaml:"crawlDelayMs"`
	NavTimeoutMs     int    `yaml:"navTimeoutMs"`
	RetryDelayMs     int    `yaml:"retryDelayMs"`
	MaxRetries       int    `yaml:"maxRetries"`
	SitemapURLCap    int    `yaml:"sitemapUrlCap"`
	RespectRobotsTxt bool   `yaml:"respectRobotsTxt"`
	FollowSubdomains bool   `yaml:"followSubdomains"`
	RenderJavascript bool   `yaml:"renderJavascript"`
}

// BrowserConfig controls the rod-driven headless browser.
type BrowserConfig struct {
	ControlURL string `yaml:"controlURL"`
}

// OracleConfig configures the external Lighthouse-style performance API.
// An empty API key disables the post-crawl performance step.
type OracleConfig struct {
	BaseURL   string `yaml:"baseURL"`
	APIKey    string `yaml:"apiKey"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ServiceKey string `yaml:"serviceKey"`
}

type RateLimitConfig struct {
	DefaultPerMinute int `yaml:"defaultPerMinute"`
}

// WorkerConfig controls the job lifecycle controller's timers.
type WorkerConfig struct {
	PollIntervalSeconds   int `yaml:"pollIntervalSeconds"`
	ResumeRetryMinutes    int `yaml:"resumeRetryMinutes"`
	StaleJobMinutes       int `yaml:"staleJobMinutes"`
	ResumeWindowMinutes   int `yaml:"resumeWindowMinutes"`
	ResumeMinPagesCrawled int `yaml:"resumeMinPagesCrawled"`
	ResumeMaxJobs         int `yaml:"resumeMaxJobs"`
}

// JobTTLConfig controls job retention in days by terminal status.
type JobTTLConfig struct {
	DefaultDays   int `yaml:"defaultDays"`
	CompletedDays int `yaml:"completedDays"`
	FailedDays    int `yaml:"failedDays"`
	CancelledDays int `yaml:"cancelledDays"`
}

// RetentionConfig controls TTL-like deletion of old jobs and their pages so
// that the database does not grow without bound over time.
type RetentionConfig struct {
	Enabled                bool         `yaml:"enabled"`
	CleanupIntervalMinutes int          `yaml:"cleanupIntervalMinutes"`
	Jobs                   JobTTLConfig `yaml:"jobs"`
}

type LoggingConfig struct {
	Environment string `yaml:"environment"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Browser   BrowserConfig   `yaml:"browser"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Worker    WorkerConfig    `yaml:"worker"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Database.DSN == "" {
		log.Fatalf("database DSN is required (set database.dsn or PEREGRINE_DATABASE_URL)")
	}
	if cfg.Auth.ServiceKey == "" {
		log.Fatalf("service key is required (set auth.serviceKey or PEREGRINE_SERVICE_KEY)")
	}

	return &cfg
}

// applyEnv layers the environment contract over the file: the job-store DSN
// and service credential are required, the oracle key is optional.
func (c *Config) applyEnv() {
	if v := os.Getenv("PEREGRINE_DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PEREGRINE_SERVICE_KEY"); v != "" {
		c.Auth.ServiceKey = v
		c.Auth.Enabled = true
	}
	if v := os.Getenv("PEREGRINE_ORACLE_API_KEY"); v != "" {
		c.Oracle.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Crawler.UserAgent == "" {
		c.Crawler.UserAgent = "PeregrineBot/1.0 (+https://peregrine.dev/bot)"
	}
	if c.Crawler.MaxPagesDefault == 0 {
		c.Crawler.MaxPagesDefault = 100
	}
	if c.Crawler.MaxDepthDefault == 0 {
		c.Crawler.MaxDepthDefault = 5
	}
	if c.Crawler.CrawlDelayMs == 0 {
		c.Crawler.CrawlDelayMs = 1000
	}
	if c.Crawler.NavTimeoutMs == 0 {
		c.Crawler.NavTimeoutMs = 30000
	}
	if c.Crawler.RetryDelayMs == 0 {
		c.Crawler.RetryDelayMs = 1000
	}
	if c.Crawler.MaxRetries == 0 {
		c.Crawler.MaxRetries = 2
	}
	if c.Crawler.SitemapURLCap == 0 {
		c.Crawler.SitemapURLCap = 5000
	}
	if c.Oracle.TimeoutMs == 0 {
		c.Oracle.TimeoutMs = 60000
	}
	if c.Worker.PollIntervalSeconds == 0 {
		c.Worker.PollIntervalSeconds = 30
	}
	if c.Worker.ResumeRetryMinutes == 0 {
		c.Worker.ResumeRetryMinutes = 5
	}
	if c.Worker.StaleJobMinutes == 0 {
		c.Worker.StaleJobMinutes = 5
	}
	if c.Worker.ResumeWindowMinutes == 0 {
		c.Worker.ResumeWindowMinutes = 60
	}
	if c.Worker.ResumeMinPagesCrawled == 0 {
		c.Worker.ResumeMinPagesCrawled = 10
	}
	if c.Worker.ResumeMaxJobs == 0 {
		c.Worker.ResumeMaxJobs = 5
	}
	if c.Retention.CleanupIntervalMinutes == 0 {
		c.Retention.CleanupIntervalMinutes = 60
	}
}
