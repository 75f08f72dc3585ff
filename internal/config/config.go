// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	// PollInterval is the period between ingestion passes.
	PollInterval time.Duration
	// SendInterval is the period between delivery passes.
	SendInterval time.Duration
	// SendDelayMin and SendDelayMax bound the randomized pause between
	// successive messages to the same user.
	SendDelayMin time.Duration
	SendDelayMax time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	pollInterval, err := durationEnv("POLL_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	sendInterval, err := durationEnv("SEND_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	delayMin, err := durationEnv("SEND_DELAY_MIN", 1*time.Second)
	if err != nil {
		return nil, err
	}
	delayMax, err := durationEnv("SEND_DELAY_MAX", 5*time.Second)
	if err != nil {
		return nil, err
	}
	if delayMax < delayMin {
		return nil, fmt.Errorf("SEND_DELAY_MAX (%s) must not be less than SEND_DELAY_MIN (%s)", delayMax, delayMin)
	}

	return &Config{
		TelegramBotToken: token,
		DatabasePath:     dbPath,
		LogLevel:         logLevel,
		AllowedUsers:     allowedUsers,
		PollInterval:     pollInterval,
		SendInterval:     sendInterval,
		SendDelayMin:     delayMin,
		SendDelayMax:     delayMax,
	}, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q in %s: %w", raw, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
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
