// Package config resolves server settings from flags, the environment and
// an optional .env file. Flags win over the environment, which wins over
// the defaults.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings
type Config struct {
	Port          int
	DBPath        string
	AdminToken    string
	LogLevel      string
	LogFormat     string
	BaseURL       string
	CacheTTL      time.Duration
	WarmInterval  time.Duration
	Formats       []string
	MailerURL     string
	MailerToken   string
	MailerFrom    string
	DisableWarmer bool
	ShowVersion   bool
}

// Defaults
const (
	DefaultPort         = 8080
	DefaultDBPath       = "standings.db"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultCacheTTL     = 5 * time.Minute
	DefaultWarmInterval = 5 * time.Minute
	DefaultMailerFrom   = "World Finals <noreply@example.com>"
)

// LoadDotEnv reads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Load parses args against getenv. Unset durations and lists fall back to
// their defaults; malformed values are errors.
func Load(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	port, err := strconv.Atoi(env("PORT", strconv.Itoa(DefaultPort)))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cacheTTL, err := time.ParseDuration(env("STANDINGS_CACHE_TTL", DefaultCacheTTL.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid STANDINGS_CACHE_TTL: %w", err)
	}
	warmInterval, err := time.ParseDuration(env("STANDINGS_WARM_INTERVAL", DefaultWarmInterval.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid STANDINGS_WARM_INTERVAL: %w", err)
	}

	cfg := &Config{}
	var formats string

	fs := flag.NewFlagSet("standings", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&cfg.Port, "port", port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", env("DB_PATH", DefaultDBPath), "SQLite database path")
	fs.StringVar(&cfg.AdminToken, "admintoken", env("ADMIN_TOKEN", ""), "Admin bearer token (generated if not set)")
	fs.StringVar(&cfg.LogLevel, "loglevel", env("LOG_LEVEL", DefaultLogLevel), "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "logformat", env("LOG_FORMAT", DefaultLogFormat), "Log format (text, json)")
	fs.StringVar(&cfg.BaseURL, "baseurl", env("BASE_URL", ""), "Public base URL for links in emails")
	fs.DurationVar(&cfg.CacheTTL, "cachettl", cacheTTL, "Standings cache TTL")
	fs.DurationVar(&cfg.WarmInterval, "warminterval", warmInterval, "Standings cache warm interval")
	fs.StringVar(&formats, "formats", env("STANDINGS_FORMATS", ""), "Comma separated formats to summarize and warm")
	fs.StringVar(&cfg.MailerURL, "mailerurl", env("MAILER_URL", ""), "Mail relay URL (emails are logged when unset)")
	fs.StringVar(&cfg.MailerToken, "mailertoken", env("MAILER_TOKEN", ""), "Mail relay token")
	fs.StringVar(&cfg.MailerFrom, "mailerfrom", env("MAILER_FROM", DefaultMailerFrom), "Sender address")
	fs.BoolVar(&cfg.DisableWarmer, "nowarm", false, "Disable the periodic cache warm")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Formats = splitList(formats)
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", c.CacheTTL)
	}
	if c.WarmInterval <= 0 {
		return fmt.Errorf("warm interval must be positive, got %v", c.WarmInterval)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
