package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mainbot/internal/models"
	"mainbot/internal/storage"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.reply(message.Chat.ID, "Произошла ошибка при обработке запроса. Попробуйте ещё раз.")
		}
	}()

	userID := message.From.ID
	ctx := context.Background()

	if b.isBanned(ctx, userID) {
		return
	}

	if !b.isAdmin(userID) && b.maintenanceOn(ctx) {
		b.reply(message.Chat.ID, "🔧 Бот на техническом обслуживании. Попробуйте позже.")
		return
	}

	// Check if user is in a conversation
	if state, ok := b.getState(userID); ok {
		// If conversation is already complete (Step == -1), clean it up
		// and process as new command
		if state.Step == -1 {
			b.clearState(userID)
		} else if message.IsCommand() {
			// Allow any command to interrupt/cancel an ongoing conversation
			b.clearState(userID)
		} else {
			b.handleConversation(ctx, message, state)
			return
		}
	}

	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "me", "profile":
		b.handleProfile(ctx, message)
	case "top":
		b.handleTop(ctx, message, "all")
	case "cancel":
		b.reply(message.Chat.ID, "Действие отменено")
	case "admin":
		b.handleAdmin(ctx, message)
	case "maintenance":
		b.handleMaintenance(ctx, message)
	default:
		b.reply(message.Chat.ID, "Неизвестная команда. Используйте /start")
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	userID := query.From.ID
	ctx := context.Background()

	// Answer the callback query to remove loading state
	if b.api != nil {
		b.api.Request(tgbotapi.NewCallback(query.ID, ""))
	}

	data := query.Data
	switch {
	case data == "agree":
		b.handleAgreeCallback(ctx, query)
	case strings.HasPrefix(data, "top:"):
		b.handleTopCallback(ctx, query)
	case strings.HasPrefix(data, "admin:"):
		b.handleAdminMenuCallback(ctx, query)
	case strings.HasPrefix(data, "services:"):
		b.handleServiceMenuCallback(ctx, query)
	case strings.HasPrefix(data, "mentors:"):
		b.handleMentorMenuCallback(ctx, query)
	case strings.HasPrefix(data, "approve:"), strings.HasPrefix(data, "reject:"):
		b.handleApplicationCallback(ctx, query)
	case strings.HasPrefix(data, "ban:"), strings.HasPrefix(data, "unban:"):
		b.handleBanCallback(ctx, query)
	case strings.HasPrefix(data, "service:"):
		b.handleServiceCallback(ctx, query)
	case strings.HasPrefix(data, "stage:"):
		b.handleStageCallback(ctx, query)
	case data == "confirm_profit", data == "cancel_profit":
		b.handleProfitConfirmCallback(ctx, query)
	case data == "confirm_broadcast", data == "cancel_broadcast":
		b.handleBroadcastConfirmCallback(ctx, query)
	case strings.HasPrefix(data, "payout_menu:"):
		b.handlePayoutMenuCallback(ctx, query)
	case strings.HasPrefix(data, "payout_all:"):
		b.handlePayoutAllCallback(ctx, query)
	case strings.HasPrefix(data, "payout:"):
		b.handlePayoutCallback(ctx, query)
	}

	// Clean up completed conversations
	if state, ok := b.getState(userID); ok && state.Step == -1 {
		b.clearState(userID)
	}
}

// maintenanceOn reports whether the bot is closed for non-admins
func (b *Bot) maintenanceOn(ctx context.Context) bool {
	v, err := b.db.GetSetting(ctx, "maintenance_mode")
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.logger.Warn("Failed to read maintenance setting", zap.Error(err))
		}
		return false
	}
	return v == "on"
}

// handleMaintenance toggles maintenance mode: /maintenance on|off
func (b *Bot) handleMaintenance(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message.From.ID) {
		b.reply(message.Chat.ID, "Неизвестная команда. Используйте /start")
		return
	}

	arg := strings.TrimSpace(message.CommandArguments())
	if arg != "on" && arg != "off" {
		b.reply(message.Chat.ID, "Использование: /maintenance on|off")
		return
	}
	if err := b.db.SetSetting(ctx, "maintenance_mode", arg); err != nil {
		b.logger.Error("Failed to set maintenance mode", zap.Error(err))
		b.reply(message.Chat.ID, "Не удалось изменить режим обслуживания.")
		return
	}
	b.logAdminAction(ctx, message.From.ID, message.From.UserName, "maintenance_"+arg, "", nil)
	if arg == "on" {
		b.reply(message.Chat.ID, "🔧 Режим обслуживания включён.")
	} else {
		b.reply(message.Chat.ID, "✅ Режим обслуживания выключен.")
	}
}

// isBanned silently drops updates from banned accounts
func (b *Bot) isBanned(ctx context.Context, userID int64) bool {
	worker, err := b.db.GetWorker(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.logger.Warn("Worker lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return false
	}
	return worker.Status == models.StatusBanned
}
