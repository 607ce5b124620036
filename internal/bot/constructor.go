package bot

import (
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mainbot/internal/config"
	"mainbot/internal/notify"
	"mainbot/internal/profit"
	"mainbot/internal/storage"
)

// NewBot creates a new Telegram bot
func NewBot(cfg *config.Config, db storage.Storage, recorder *profit.Recorder, logger *zap.Logger) (*Bot, error) {
	// Bounded HTTP client so a single slow send cannot stall a broadcast
	client := &http.Client{Timeout: 30 * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	admins := make(map[int64]bool)
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := &Bot{
		api:                   api,
		db:                    db,
		recorder:              recorder,
		notifier:              notify.NewTelegram(api, logger),
		admins:                admins,
		states:                make(map[int64]*ConversationState),
		logger:                logger,
		profitsChannelID:      cfg.ProfitsChannelID,
		applicationsChannelID: cfg.ApplicationsChannelID,
		broadcastDelay:        cfg.BroadcastDelay,
		broadcastBatchSize:    cfg.BroadcastBatchSize,
	}
	b.queue = NewMentorQueue(b, db, logger)
	return b, nil
}

// GetAPI returns the bot API for testing
func (b *Bot) GetAPI() *tgbotapi.BotAPI {
	return b.api
}
