package config

import (
	"fmt"
	"net/url"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for Voyager.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"    yaml:"database"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"     yaml:"fetcher"`
	Scraper    ScraperConfig    `mapstructure:"scraper"     yaml:"scraper"`
	AutoScrape AutoScrapeConfig `mapstructure:"auto_scrape" yaml:"auto_scrape"`
	API        APIConfig        `mapstructure:"api"         yaml:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"     yaml:"logging"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"     yaml:"host"`
	Port     int    `mapstructure:"port"     yaml:"port"`
	Name     string `mapstructure:"name"     yaml:"name"`
	User     string `mapstructure:"user"     yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	SSLMode  string `mapstructure:"sslmode"  yaml:"sslmode"`
}

// DSN builds a postgres connection URL from the config, URL-encoding the
// credentials.
func (c DatabaseConfig) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// FetcherConfig controls both fetch modes.
type FetcherConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"      yaml:"user_agent"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`

	// SettleDelay is the minimum wait after navigation before the
	// rendered page is captured. The browser additionally waits for the
	// DOM to stop mutating, bounded by RequestTimeout.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	Headless    bool          `mapstructure:"headless"     yaml:"headless"`
	Stealth     bool          `mapstructure:"stealth"      yaml:"stealth"`

	// DumpDir, when set, receives a copy of every fetched page for
	// offline debugging. Dump failures never abort a scrape.
	DumpDir string `mapstructure:"dump_dir" yaml:"dump_dir"`
}

// ScraperConfig controls extraction behavior shared by all scrapers.
type ScraperConfig struct {
	DefaultCurrency string `mapstructure:"default_currency" yaml:"default_currency"`

	// MaxContainers bounds how many product containers a single page may
	// contribute, so malformed pages cannot blow up memory or runtime.
	MaxContainers int `mapstructure:"max_containers" yaml:"max_containers"`
}

// AutoScrapeConfig controls the auto-scraper orchestrator.
type AutoScrapeConfig struct {
	// ProvidersDir holds one subdirectory per provider, each with a
	// targets.yaml file.
	ProvidersDir string `mapstructure:"providers_dir" yaml:"providers_dir"`
}

// APIConfig controls the REST server.
type APIConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "voyager",
			User:     "voyager_user",
			Password: "voyager_password",
			SSLMode:  "disable",
		},
		Fetcher: FetcherConfig{
			RequestTimeout: 30 * time.Second,
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			SettleDelay:    2 * time.Second,
			Headless:       true,
			Stealth:        false,
		},
		Scraper: ScraperConfig{
			DefaultCurrency: "MKD",
			MaxContainers:   50,
		},
		AutoScrape: AutoScrapeConfig{
			ProvidersDir: "./configs/providers",
		},
		API: APIConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
