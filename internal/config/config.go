package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string
	AdminIDs      []int64

	// Channels: 0 disables the corresponding notification stream
	ProfitsChannelID      int64
	ApplicationsChannelID int64

	// Referral cut, percent of the gross profit amount
	ReferralPercent int

	// Broadcast pacing
	BroadcastDelay     time.Duration
	BroadcastBatchSize int

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)

	// Supabase/Postgres connection string
	DatabaseURL string

	UseMockDB bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Admin IDs (required)
	adminIDsStr := os.Getenv("ADMIN_IDS")
	if adminIDsStr == "" {
		return nil, fmt.Errorf("ADMIN_IDS is required (comma-separated list of Telegram user IDs)")
	}

	idStrs := strings.Split(adminIDsStr, ",")
	for _, idStr := range idStrs {
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID in ADMIN_IDS: %s", idStr)
		}
		config.AdminIDs = append(config.AdminIDs, id)
	}

	var err error
	config.ProfitsChannelID, err = int64Env("PROFITS_CHANNEL_ID", 0)
	if err != nil {
		return nil, err
	}
	config.ApplicationsChannelID, err = int64Env("APPLICATIONS_CHANNEL_ID", 0)
	if err != nil {
		return nil, err
	}

	config.ReferralPercent, err = intEnv("REFERRAL_PERCENT", 5)
	if err != nil {
		return nil, err
	}
	if config.ReferralPercent < 0 || config.ReferralPercent > 100 {
		return nil, fmt.Errorf("REFERRAL_PERCENT must be between 0 and 100")
	}

	delayMs, err := intEnv("BROADCAST_DELAY_MS", 50)
	if err != nil {
		return nil, err
	}
	config.BroadcastDelay = time.Duration(delayMs) * time.Millisecond

	config.BroadcastBatchSize, err = intEnv("BROADCAST_BATCH_SIZE", 20)
	if err != nil {
		return nil, err
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// Database connection (required if not using mock)
	if !config.UseMockDB {
		config.DatabaseURL = os.Getenv("DATABASE_URL")
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when USE_MOCK_DB is not set")
		}
	}

	return config, nil
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func int64Env(key string, def int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
