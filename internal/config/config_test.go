package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "DATABASE_PATH", "LOG_LEVEL", "ALLOWED_USERS",
	"POLL_INTERVAL", "SEND_INTERVAL", "SEND_DELAY_MIN", "SEND_DELAY_MAX",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "token only, defaults applied",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "test-token"},
			want: &Config{
				TelegramBotToken: "test-token",
				DatabasePath:     "./data/bot.db",
				LogLevel:         "info",
				AllowedUsers:     nil,
				PollInterval:     10 * time.Minute,
				SendInterval:     15 * time.Minute,
				SendDelayMin:     1 * time.Second,
				SendDelayMax:     5 * time.Second,
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"DATABASE_PATH":      "/tmp/bot.db",
				"LOG_LEVEL":          "debug",
				"ALLOWED_USERS":      "111,222,333",
				"POLL_INTERVAL":      "5m",
				"SEND_INTERVAL":      "30m",
				"SEND_DELAY_MIN":     "500ms",
				"SEND_DELAY_MAX":     "2s",
			},
			want: &Config{
				TelegramBotToken: "tok",
				DatabasePath:     "/tmp/bot.db",
				LogLevel:         "debug",
				AllowedUsers:     []int64{111, 222, 333},
				PollInterval:     5 * time.Minute,
				SendInterval:     30 * time.Minute,
				SendDelayMin:     500 * time.Millisecond,
				SendDelayMax:     2 * time.Second,
			},
		},
		{
			name: "allowed users with spaces",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ALLOWED_USERS":      " 10 , 20 , ",
			},
			want: &Config{
				TelegramBotToken: "tok",
				DatabasePath:     "./data/bot.db",
				LogLevel:         "info",
				AllowedUsers:     []int64{10, 20},
				PollInterval:     10 * time.Minute,
				SendInterval:     15 * time.Minute,
				SendDelayMin:     1 * time.Second,
				SendDelayMax:     5 * time.Second,
			},
		},
		{
			name: "invalid user id",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ALLOWED_USERS":      "123,abc",
			},
			wantErr: true,
		},
		{
			name: "invalid interval",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"POLL_INTERVAL":      "often",
			},
			wantErr: true,
		},
		{
			name: "negative delay",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"SEND_DELAY_MIN":     "-1s",
			},
			wantErr: true,
		},
		{
			name: "delay max below min",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"SEND_DELAY_MIN":     "5s",
				"SEND_DELAY_MAX":     "1s",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear relevant env vars
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
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []int64
		userID  int64
		want    bool
	}{
		{name: "empty list allows everyone", allowed: nil, userID: 5, want: true},
		{name: "listed user allowed", allowed: []int64{1, 2}, userID: 2, want: true},
		{name: "unlisted user denied", allowed: []int64{1, 2}, userID: 3, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{AllowedUsers: tt.allowed}
			if got := c.IsUserAllowed(tt.userID); got != tt.want {
				t.Errorf("IsUserAllowed(%d) = %v, want %v", tt.userID, got, tt.want)
			}
		})
	}
}
