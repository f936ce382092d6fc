package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with durations as strings so YAML can use "500ms".
type fileConfig struct {
	DatabaseURL     string   `yaml:"database_url"`
	ServerPort      string   `yaml:"server_port"`
	RedisURL        string   `yaml:"redis_url"`
	UserAgent       string   `yaml:"user_agent"`
	Timeout         string   `yaml:"timeout"`
	UpstreamURL     string   `yaml:"upstream_url"`
	CategoriesFile  string   `yaml:"categories_file"`
	CredentialsFile string   `yaml:"credentials_file"`
	DefaultSession  string   `yaml:"default_session"`
	DefaultCookie   string   `yaml:"default_cookie"`
	PageDelay       string   `yaml:"page_delay"`
	CategoryDelay   string   `yaml:"category_delay"`
	ChannelPageSize int      `yaml:"channel_page_size"`
	SiteName        string   `yaml:"site_name"`
	SMTP            fileSMTP `yaml:"smtp"`
	LogLevel        string   `yaml:"log_level"`
	LogJSON         bool     `yaml:"log_json"`
}

type fileSMTP struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	User        string   `yaml:"user"`
	Password    string   `yaml:"password"`
	From        string   `yaml:"from"`
	AdminEmails []string `yaml:"admin_emails"`
}

// LoadFromFile loads config from a YAML file. database_url is required.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	c := &Config{
		DatabaseURL:     f.DatabaseURL,
		ServerPort:      f.ServerPort,
		RedisURL:        f.RedisURL,
		UserAgent:       f.UserAgent,
		UpstreamURL:     f.UpstreamURL,
		CategoriesFile:  f.CategoriesFile,
		CredentialsFile: f.CredentialsFile,
		DefaultSession:  f.DefaultSession,
		DefaultCookie:   f.DefaultCookie,
		ChannelPageSize: f.ChannelPageSize,
		SiteName:        f.SiteName,
		SMTP: SMTP{
			Host:        f.SMTP.Host,
			Port:        f.SMTP.Port,
			User:        f.SMTP.User,
			Password:    f.SMTP.Password,
			From:        f.SMTP.From,
			AdminEmails: f.SMTP.AdminEmails,
		},
		LogLevel: f.LogLevel,
		LogJSON:  f.LogJSON,
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{f.Timeout, &c.Timeout},
		{f.PageDelay, &c.PageDelay},
		{f.CategoryDelay, &c.CategoryDelay},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", d.raw, err)
		}
		*d.dst = v
	}
	c.applyDefaults()
	return c, nil
}
