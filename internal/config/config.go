package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingDatabaseURL is returned when no database DSN is configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Defaults applied when a setting is absent.
const (
	DefaultServerPort      = "8080"
	DefaultUserAgent       = "Mozilla/5.0"
	DefaultTimeout         = 30 * time.Second
	DefaultUpstreamURL     = "https://watchtv.cc/feedback/get_channel_data"
	DefaultCategoriesFile  = "public/names.txt"
	DefaultCredentialsFile = "config/cookie-config.json"
	DefaultPageDelay       = 100 * time.Millisecond
	DefaultCategoryDelay   = 500 * time.Millisecond
	DefaultChannelPageSize = 1000
	DefaultSiteName        = "fiootv"
	DefaultMailFrom        = "noreply@fiootv.com"
	DefaultLogLevel        = "info"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL string        `yaml:"database_url" env:"DATABASE_URL"`
	ServerPort  string        `yaml:"server_port" env:"SERVER_PORT"`
	RedisURL    string        `yaml:"redis_url" env:"REDIS_URL"`
	UserAgent   string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout     time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`

	// Upstream channel source and the files backing it.
	UpstreamURL     string `yaml:"upstream_url" env:"UPSTREAM_URL"`
	CategoriesFile  string `yaml:"categories_file" env:"CATEGORIES_FILE"`
	CredentialsFile string `yaml:"credentials_file" env:"CREDENTIALS_FILE"`
	DefaultSession  string `yaml:"default_session" env:"UPSTREAM_DEFAULT_SESSION"`
	DefaultCookie   string `yaml:"default_cookie" env:"UPSTREAM_DEFAULT_COOKIE"`

	PageDelay       time.Duration `yaml:"page_delay" env:"SYNC_PAGE_DELAY"`
	CategoryDelay   time.Duration `yaml:"category_delay" env:"SYNC_CATEGORY_DELAY"`
	ChannelPageSize int           `yaml:"channel_page_size" env:"CHANNELS_PAGE_SIZE"`

	SiteName string `yaml:"site_name" env:"SITE_NAME"`
	SMTP     SMTP   `yaml:"smtp"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"LOG_JSON"`
}

// SMTP holds outgoing mail settings. Mail is disabled unless Host, Port,
// User and Password are all set.
type SMTP struct {
	Host        string   `yaml:"host" env:"RESEND_HOST"`
	Port        int      `yaml:"port" env:"RESEND_PORT"`
	User        string   `yaml:"user" env:"RESEND_USER"`
	Password    string   `yaml:"password" env:"RESEND_PASSWORD"`
	From        string   `yaml:"from" env:"RESEND_FROM_EMAIL"`
	AdminEmails []string `yaml:"admin_emails" env:"RESEND_ADMIN_EMAIL"`
}

// Configured reports whether enough settings are present to send mail.
func (s SMTP) Configured() bool {
	return s.Host != "" && s.Port != 0 && s.User != "" && s.Password != ""
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load tries to load .env.local and .env from the current directory.
// DATABASE_URL is required; everything else has a default.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ServerPort:      os.Getenv("SERVER_PORT"),
		RedisURL:        os.Getenv("REDIS_URL"),
		UserAgent:       os.Getenv("FETCHER_USER_AGENT"),
		UpstreamURL:     os.Getenv("UPSTREAM_URL"),
		CategoriesFile:  os.Getenv("CATEGORIES_FILE"),
		CredentialsFile: os.Getenv("CREDENTIALS_FILE"),
		DefaultSession:  os.Getenv("UPSTREAM_DEFAULT_SESSION"),
		DefaultCookie:   os.Getenv("UPSTREAM_DEFAULT_COOKIE"),
		SiteName:        os.Getenv("SITE_NAME"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		SMTP: SMTP{
			Host:        os.Getenv("RESEND_HOST"),
			User:        os.Getenv("RESEND_USER"),
			Password:    os.Getenv("RESEND_PASSWORD"),
			From:        os.Getenv("RESEND_FROM_EMAIL"),
			AdminEmails: SplitList(os.Getenv("RESEND_ADMIN_EMAIL")),
		},
	}
	if c.ServerPort == "" {
		c.ServerPort = os.Getenv("PORT")
	}
	c.Timeout = envDuration("FETCHER_TIMEOUT")
	c.PageDelay = envDuration("SYNC_PAGE_DELAY")
	c.CategoryDelay = envDuration("SYNC_CATEGORY_DELAY")
	if n, err := strconv.Atoi(os.Getenv("CHANNELS_PAGE_SIZE")); err == nil {
		c.ChannelPageSize = n
	}
	if n, err := strconv.Atoi(os.Getenv("RESEND_PORT")); err == nil {
		c.SMTP.Port = n
	}
	if b, err := strconv.ParseBool(os.Getenv("LOG_JSON")); err == nil {
		c.LogJSON = b
	}
	c.applyDefaults()
	if c.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return c, nil
}

// applyDefaults fills zero values. Delays are only defaulted when unset;
// a negative delay disables waiting.
func (c *Config) applyDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = DefaultServerPort
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UpstreamURL == "" {
		c.UpstreamURL = DefaultUpstreamURL
	}
	if c.CategoriesFile == "" {
		c.CategoriesFile = DefaultCategoriesFile
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = DefaultCredentialsFile
	}
	if c.PageDelay == 0 {
		c.PageDelay = DefaultPageDelay
	}
	if c.CategoryDelay == 0 {
		c.CategoryDelay = DefaultCategoryDelay
	}
	if c.ChannelPageSize <= 0 {
		c.ChannelPageSize = DefaultChannelPageSize
	}
	if c.SiteName == "" {
		c.SiteName = DefaultSiteName
	}
	if c.SMTP.From == "" {
		c.SMTP.From = DefaultMailFrom
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDuration(key string) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
