package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mainbot/internal/models"
)

// sendMessage sends a chattable, logging delivery failures
func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if b.api == nil {
		return // For testing
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Failed to send message", zap.Error(err))
	}
}

// reply sends a plain HTML message to a chat
func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	b.sendMessage(msg)
}

// replyWithMarkup sends an HTML message with an inline keyboard
func (b *Bot) replyWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	b.sendMessage(msg)
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

// fmtAmount renders a money value with two decimals
func fmtAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// workerLabel renders a worker reference for operator-facing text
func workerLabel(w *models.Worker) string {
	if w.Username != "" {
		return "@" + w.Username
	}
	if w.FullName != "" {
		return w.FullName
	}
	return fmt.Sprintf("id%d", w.ID)
}

// logAdminAction writes the audit row, failures logged only
func (b *Bot) logAdminAction(ctx context.Context, adminID int64, adminUsername, actionType, details string, targetID *int64) {
	action := models.AdminAction{
		AdminID:       adminID,
		AdminUsername: adminUsername,
		ActionType:    actionType,
		Details:       details,
		TargetUserID:  targetID,
	}
	if err := b.db.LogAdminAction(ctx, action); err != nil {
		b.logger.Warn("Failed to log admin action",
			zap.Int64("admin_id", adminID),
			zap.String("action", actionType),
			zap.Error(err),
		)
	}
}
