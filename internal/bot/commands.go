package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mainbot/internal/models"
	"mainbot/internal/ranks"
	"mainbot/internal/storage"
)

// handleStart greets known workers and routes newcomers into the
// registration flow. A payload of the form "ref<id>" credits the
// referrer; self-referral is ignored.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	worker, err := b.db.GetWorker(ctx, userID)
	if err == nil {
		switch worker.Status {
		case models.StatusActive:
			b.reply(message.Chat.ID, fmt.Sprintf(
				"С возвращением, %s!\n\nВаш ранг: %s\n/me — профиль\n/top — топ воркеров",
				workerLabel(worker), ranks.Badge(worker.TotalProfit)))
		case models.StatusPending:
			b.reply(message.Chat.ID, "⏳ Ваша заявка на рассмотрении. Мы сообщим о решении.")
		}
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		b.logger.Error("Worker lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}

	state := &ConversationState{Command: "register", Step: 1, Data: make(map[string]interface{})}
	if payload := message.CommandArguments(); strings.HasPrefix(payload, "ref") {
		if refID, err := strconv.ParseInt(strings.TrimPrefix(payload, "ref"), 10, 64); err == nil && refID != userID {
			// Credit only referrers that actually exist
			if _, err := b.db.GetWorker(ctx, refID); err == nil {
				state.Data["referrer_id"] = refID
			}
		}
	}
	b.setState(userID, state)

	b.replyWithMarkup(message.Chat.ID,
		"👋 Добро пожаловать в команду!\n\n"+
			"Для вступления нужно подать заявку.\n"+
			"Продолжая, вы принимаете правила команды.",
		agreementKeyboard())
}

// handleProfile renders the worker's rank card and referral stats
func (b *Bot) handleProfile(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	worker, err := b.db.GetWorker(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.reply(message.Chat.ID, "Вы не зарегистрированы. Используйте /start")
			return
		}
		b.logger.Error("Worker lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	if worker.Status != models.StatusActive {
		b.reply(message.Chat.ID, "⏳ Ваша заявка ещё на рассмотрении.")
		return
	}

	info := ranks.For(worker.TotalProfit)
	referrals, err := b.db.CountReferrals(ctx, userID)
	if err != nil {
		b.logger.Warn("Referral count failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n\n", info.Emoji, workerLabel(worker)))
	sb.WriteString(fmt.Sprintf("Ранг: %s %s (уровень %d)\n", info.Emoji, info.Name, info.Level))
	sb.WriteString(fmt.Sprintf("%s %.0f%%\n", ranks.ProgressBar(info.Progress, 10), info.Progress))
	if info.ToNext.IsPositive() {
		sb.WriteString(fmt.Sprintf("До следующего ранга: %s\n", fmtAmount(info.ToNext)))
	}
	sb.WriteString(fmt.Sprintf("\n💰 Всего заработано: %s\n", fmtAmount(worker.TotalProfit)))
	sb.WriteString(fmt.Sprintf("🤝 Рефералов: %d\n", referrals))
	sb.WriteString(fmt.Sprintf("💵 Реферальный доход: %s\n", fmtAmount(worker.ReferralEarnings)))
	if b.api != nil {
		sb.WriteString(fmt.Sprintf("\nВаша ссылка: https://t.me/%s?start=ref%d", b.api.Self.UserName, userID))
	}

	b.reply(message.Chat.ID, sb.String())
}

// handleTop renders the leaderboard for a period
func (b *Bot) handleTop(ctx context.Context, message *tgbotapi.Message, period string) {
	text, err := b.renderTop(ctx, period)
	if err != nil {
		b.logger.Error("Leaderboard query failed", zap.String("period", period), zap.Error(err))
		b.reply(message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	b.replyWithMarkup(message.Chat.ID, text, topPeriodKeyboard())
}

func (b *Bot) renderTop(ctx context.Context, period string) (string, error) {
	top, err := b.db.TopWorkers(ctx, period, 10)
	if err != nil {
		return "", err
	}

	titles := map[string]string{"all": "за всё время", "month": "за месяц", "week": "за неделю"}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏆 <b>Топ воркеров %s</b>\n\n", titles[period]))
	if len(top) == 0 {
		sb.WriteString("Пока пусто.")
		return sb.String(), nil
	}
	medals := []string{"🥇", "🥈", "🥉"}
	for i, t := range top {
		place := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			place = medals[i]
		}
		name := t.Username
		if name == "" {
			name = t.FullName
		}
		sb.WriteString(fmt.Sprintf("%s %s — %s (%d профитов)\n", place, name, fmtAmount(t.Total), t.Count))
	}
	return sb.String(), nil
}

// handleAdmin opens the operator menu
func (b *Bot) handleAdmin(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message.From.ID) {
		b.reply(message.Chat.ID, "Неизвестная команда. Используйте /start")
		return
	}
	b.replyWithMarkup(message.Chat.ID, "⚙️ <b>Панель администратора</b>", adminMenuKeyboard())
}
