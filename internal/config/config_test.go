package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"CONFIG_FILE", "CATALOG_BASE_URL", "CATALOG_FEED_URL", "TELEGRAM_BOT_TOKEN",
	"DATABASE_PATH", "DATABASE_URL", "LOG_LEVEL", "ALLOWED_USERS", "PAGE_SIZE",
	"LOAD_MORE_DEBOUNCE", "HTTP_TIMEOUT", "HTTP_RETRIES", "THOUSAND_LABEL", "WATCH_INTERVAL",
}

func withDefaults(f func(c *Config)) *Config {
	c := Default()
	f(c)
	return c
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing catalog url",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok"},
			wantErr: true,
		},
		{
			name: "catalog only, defaults applied",
			env:  map[string]string{"CATALOG_BASE_URL": "https://api.example.com"},
			want: withDefaults(func(c *Config) {
				c.CatalogBaseURL = "https://api.example.com"
			}),
		},
		{
			name: "all values set",
			env: map[string]string{
				"CATALOG_BASE_URL":   "https://api.example.com",
				"CATALOG_FEED_URL":   "https://api.example.com/feed.xml",
				"TELEGRAM_BOT_TOKEN": "tok",
				"DATABASE_PATH":      "/tmp/pf.db",
				"DATABASE_URL":       "postgres://pf@localhost/pf",
				"LOG_LEVEL":          "debug",
				"ALLOWED_USERS":      "111,222,333",
				"PAGE_SIZE":          "20",
				"LOAD_MORE_DEBOUNCE": "150ms",
				"HTTP_TIMEOUT":       "5s",
				"HTTP_RETRIES":       "0",
				"THOUSAND_LABEL":     "Thousand",
				"WATCH_INTERVAL":     "1m",
			},
			want: &Config{
				CatalogBaseURL:   "https://api.example.com",
				CatalogFeedURL:   "https://api.example.com/feed.xml",
				TelegramBotToken: "tok",
				DatabasePath:     "/tmp/pf.db",
				DatabaseURL:      "postgres://pf@localhost/pf",
				LogLevel:         "debug",
				AllowedUsers:     []int64{111, 222, 333},
				PageSize:         20,
				LoadMoreDebounce: 150 * time.Millisecond,
				HTTPTimeout:      5 * time.Second,
				HTTPRetries:      0,
				ThousandLabel:    "Thousand",
				WatchInterval:    time.Minute,
			},
		},
		{
			name: "allowed users with spaces",
			env: map[string]string{
				"CATALOG_BASE_URL": "https://api.example.com",
				"ALLOWED_USERS":    " 10 , 20 , ",
			},
			want: withDefaults(func(c *Config) {
				c.CatalogBaseURL = "https://api.example.com"
				c.AllowedUsers = []int64{10, 20}
			}),
		},
		{
			name:    "invalid user id",
			env:     map[string]string{"CATALOG_BASE_URL": "x", "ALLOWED_USERS": "123,abc"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"CATALOG_BASE_URL": "x", "LOAD_MORE_DEBOUNCE": "soon"},
			wantErr: true,
		},
		{
			name:    "zero page size",
			env:     map[string]string{"CATALOG_BASE_URL": "x", "PAGE_SIZE": "0"},
			wantErr: true,
		},
		{
			name:    "missing config file",
			env:     map[string]string{"CATALOG_BASE_URL": "x", "CONFIG_FILE": "/nonexistent/propfeed.yaml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}

	path := filepath.Join(t.TempDir(), "propfeed.yaml")
	yml := `catalog_base_url: https://file.example.com
log_level: warn
page_size: 12
load_more_debounce: 500ms
allowed_users: [7, 8]
thousand_label: Thousand
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "error")

	got, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := withDefaults(func(c *Config) {
		c.CatalogBaseURL = "https://file.example.com"
		c.LogLevel = "error"
		c.PageSize = 12
		c.LoadMoreDebounce = 500 * time.Millisecond
		c.AllowedUsers = []int64{7, 8}
		c.ThousandLabel = "Thousand"
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestRequireBot(t *testing.T) {
	if err := (&Config{}).RequireBot(); err != ErrNoBotToken {
		t.Errorf("err = %v, want ErrNoBotToken", err)
	}
	if err := (&Config{TelegramBotToken: "t"}).RequireBot(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers []int64
		userID       int64
		want         bool
	}{
		{
			name:         "empty list allows everyone",
			allowedUsers: nil,
			userID:       42,
			want:         true,
		},
		{
			name:         "user in list",
			allowedUsers: []int64{10, 20, 30},
			userID:       20,
			want:         true,
		},
		{
			name:         "user not in list",
			allowedUsers: []int64{10, 20, 30},
			userID:       99,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			got := cfg.IsUserAllowed(tt.userID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
