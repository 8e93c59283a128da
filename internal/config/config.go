// Package config handles application configuration from environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	CatalogBaseURL   string        `yaml:"catalog_base_url"`
	CatalogFeedURL   string        `yaml:"catalog_feed_url"`
	TelegramBotToken string        `yaml:"telegram_bot_token"`
	DatabasePath     string        `yaml:"database_path"`
	DatabaseURL      string        `yaml:"database_url"`
	LogLevel         string        `yaml:"log_level"`
	AllowedUsers     []int64       `yaml:"allowed_users"`
	PageSize         int           `yaml:"page_size"`
	LoadMoreDebounce time.Duration `yaml:"load_more_debounce"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	HTTPRetries      uint64        `yaml:"http_retries"`
	ThousandLabel    string        `yaml:"thousand_label"`
	WatchInterval    time.Duration `yaml:"watch_interval"`
}

// ErrNoBotToken is returned by RequireBot when no Telegram token is set.
var ErrNoBotToken = errors.New("TELEGRAM_BOT_TOKEN is required")

// Default returns the configuration used before any file or environment
// value is applied.
func Default() *Config {
	return &Config{
		DatabasePath:     "./data/propfeed.db",
		LogLevel:         "info",
		PageSize:         10,
		LoadMoreDebounce: 300 * time.Millisecond,
		HTTPTimeout:      30 * time.Second,
		HTTPRetries:      2,
		ThousandLabel:    "k",
		WatchInterval:    5 * time.Minute,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE and then environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireBot checks the settings only the Telegram bot needs.
func (c *Config) RequireBot() error {
	if c.TelegramBotToken == "" {
		return ErrNoBotToken
	}
	return nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.CatalogBaseURL, "CATALOG_BASE_URL")
	setString(&c.CatalogFeedURL, "CATALOG_FEED_URL")
	setString(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.ThousandLabel, "THOUSAND_LABEL")

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		users, err := parseUsers(raw)
		if err != nil {
			return err
		}
		c.AllowedUsers = users
	}

	if v := os.Getenv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PAGE_SIZE %q: %w", v, err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("HTTP_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid HTTP_RETRIES %q: %w", v, err)
		}
		c.HTTPRetries = n
	}

	for key, dst := range map[string]*time.Duration{
		"LOAD_MORE_DEBOUNCE": &c.LoadMoreDebounce,
		"HTTP_TIMEOUT":       &c.HTTPTimeout,
		"WATCH_INTERVAL":     &c.WatchInterval,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = d
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.CatalogBaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL is required")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.LoadMoreDebounce < 0 {
		return fmt.Errorf("load more debounce must not be negative")
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("watch interval must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parseUsers(raw string) ([]int64, error) {
	var users []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		users = append(users, uid)
	}
	return users, nil
}
