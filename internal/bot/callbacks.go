package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mainbot/internal/models"
	"mainbot/internal/profit"
	"mainbot/internal/ranks"
)

// handleAgreeCallback advances the registration wizard past the
// agreement screen.
func (b *Bot) handleAgreeCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	state, ok := b.getState(query.From.ID)
	if !ok || state.Command != "register" || state.Step != 1 {
		return
	}
	state.Step = 2
	b.reply(query.Message.Chat.ID, "Расскажите о вашем опыте работы:")
}

// handleTopCallback re-renders the leaderboard for the chosen period
func (b *Bot) handleTopCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	period := strings.TrimPrefix(query.Data, "top:")
	text, err := b.renderTop(ctx, period)
	if err != nil {
		b.logger.Error("Leaderboard query failed", zap.String("period", period), zap.Error(err))
		return
	}

	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	markup := topPeriodKeyboard()
	edit.ReplyMarkup = &markup
	b.sendMessage(edit)
}

// handleAdminMenuCallback routes the operator menu buttons
func (b *Bot) handleAdminMenuCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if !b.isAdmin(query.From.ID) {
		return
	}
	chatID := query.Message.Chat.ID

	switch strings.TrimPrefix(query.Data, "admin:") {
	case "profit":
		b.setState(query.From.ID, &ConversationState{Command: "add_profit", Step: 1, Data: make(map[string]interface{})})
		b.reply(chatID, "Укажите воркера (@username или ID):")

	case "payouts":
		b.replyWithMarkup(chatID, "💸 Выберите очередь выплат:", payoutLedgerKeyboard())

	case "applications":
		b.showApplications(ctx, chatID)

	case "broadcast":
		b.setState(query.From.ID, &ConversationState{Command: "broadcast", Step: 1, Data: make(map[string]interface{})})
		b.reply(chatID, "Текст рассылки:")

	case "services":
		b.showServices(ctx, chatID)

	case "mentors":
		b.showMentors(ctx, chatID)

	case "find":
		b.setState(query.From.ID, &ConversationState{Command: "find_user", Step: 1, Data: make(map[string]interface{})})
		b.reply(chatID, "Укажите пользователя (@username или ID):")
	}
}

func (b *Bot) showApplications(ctx context.Context, chatID int64) {
	pending, err := b.db.ListWorkersByStatus(ctx, models.StatusPending)
	if err != nil {
		b.logger.Error("Failed to list applications", zap.Error(err))
		b.reply(chatID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	if len(pending) == 0 {
		b.reply(chatID, "📋 Новых заявок нет.")
		return
	}
	for _, w := range pending {
		text := fmt.Sprintf("📋 %s (id%d)\nОпыт: %s\nИсточник: %s",
			workerLabel(&w), w.ID, w.ExperienceText, w.SourceText)
		b.replyWithMarkup(chatID, text, applicationKeyboard(w.ID))
	}
}

func (b *Bot) showServices(ctx context.Context, chatID int64) {
	services, err := b.db.ListServices(ctx)
	if err != nil {
		b.logger.Error("Failed to list services", zap.Error(err))
		b.reply(chatID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	var sb strings.Builder
	sb.WriteString("🛠 <b>Сервисы</b>\n\n")
	if len(services) == 0 {
		sb.WriteString("Список пуст.")
	}
	for _, s := range services {
		sb.WriteString(fmt.Sprintf("%d. %s %s\n", s.ID, s.Icon, s.Name))
	}
	b.replyWithMarkup(chatID, sb.String(), serviceMenuKeyboard())
}

func (b *Bot) showMentors(ctx context.Context, chatID int64) {
	mentors, err := b.db.ListMentors(ctx)
	if err != nil {
		b.logger.Error("Failed to list mentors", zap.Error(err))
		b.reply(chatID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	var sb strings.Builder
	sb.WriteString("🎓 <b>Менторы</b>\n\n")
	if len(mentors) == 0 {
		sb.WriteString("Список пуст.")
	}
	for _, m := range mentors {
		sb.WriteString(fmt.Sprintf("%d. @%s — %s (%d%%), заработано %s\n",
			m.ID, m.Username, m.ServiceName, m.Percent, fmtAmount(m.TotalEarned)))
	}
	b.replyWithMarkup(chatID, sb.String(), mentorMenuKeyboard())
}

// handleServiceMenuCallback starts the service management wizards
func (b *Bot) handleServiceMenuCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if !b.isAdmin(query.From.ID) {
		return
	}
	switch strings.TrimPrefix(query.Data, "services:") {
	case "add":
		b.setState(query.From.ID, &ConversationState{Command: "add_service", Step: 1, Data: make(map[string]interface{})})
		b.reply(query.Message.Chat.ID, "Название сервиса:")
	case "remove":
		b.setState(query.From.ID, &ConversationState{Command: "remove_service", Step: 1, Data: make(map[string]interface{})})
		b.reply(query.Message.Chat.ID, "ID сервиса для отключения:")
	}
}

// handleMentorMenuCallback starts the mentor management wizards
func (b *Bot) handleMentorMenuCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if !b.isAdmin(query.From.ID) {
		return
	}
	chatID := query.Message.Chat.ID
	switch strings.TrimPrefix(query.Data, "mentors:") {
	case "add":
		b.setState(query.From.ID, &ConversationState{Command: "add_mentor", Step: 1, Data: make(map[string]interface{})})
		b.reply(chatID, "Аккаунт ментора (@username или ID):")
	case "assign":
		b.setState(query.From.ID, &ConversationState{Command: "assign_mentor", Step: 1, Data: make(map[string]interface{})})
		b.reply(chatID, "Студент (@username или ID):")
	case "remove":
		b.setState(query.From.ID, &ConversationState{Command: "remove_mentor", Step: 1, Data: make(map[string]interface{})})
		b.reply(chatID, "Студент, которого открепить (@username или ID):")
	case "broadcast":
		b.setState(query.From.ID, &ConversationState{Command: "mentor_broadcast", Step: 1, Data: make(map[string]interface{})})
		b.reply(chatID, "ID ментора:")
	}
}

// handleApplicationCallback applies an approve/reject decision
func (b *Bot) handleApplicationCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if !b.isAdmin(query.From.ID) {
		return
	}

	approve := strings.HasPrefix(query.Data, "approve:")
	idStr := strings.TrimPrefix(strings.TrimPrefix(query.Data, "approve:"), "reject:")
	workerID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	worker, err := b.db.GetWorker(ctx, workerID)
	if err != nil {
		b.logger.Error("Worker lookup failed", zap.Int64("worker_id", workerID), zap.Error(err))
		return
	}
	if worker.Status != models.StatusPending {
		b.editText(query, fmt.Sprintf("Заявка id%d уже обработана (%s).", workerID, worker.Status))
		return
	}

	status := models.StatusActive
	decision := "approve"
	if !approve {
		status = models.StatusBanned
		decision = "reject"
	}
	if err := b.db.UpdateWorkerStatus(ctx, workerID, status); err != nil {
		b.logger.Error("Failed to update worker status", zap.Int64("worker_id", workerID), zap.Error(err))
		return
	}
	b.logAdminAction(ctx, query.From.ID, query.From.UserName, decision+"_application", "", &workerID)

	if approve {
		b.editText(query, fmt.Sprintf("✅ Заявка %s принята.", workerLabel(worker)))
		welcome := "🎉 Ваша заявка одобрена! Добро пожаловать в команду.\n\n/me — профиль\n/top — топ воркеров"
		if custom, err := b.db.GetSetting(ctx, "welcome_message"); err == nil && custom != "" {
			welcome = custom
		}
		b.notifier.SendDirect(ctx, workerID, welcome)
	} else {
		b.editText(query, fmt.Sprintf("❌ Заявка %s отклонена.", workerLabel(worker)))
		b.notifier.SendDirect(ctx, workerID, "К сожалению, ваша заявка отклонена.")
	}
}

// handleBanCallback bans or unbans a worker from the moderation card
func (b *Bot) handleBanCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if !b.isAdmin(query.From.ID) {
		return
	}

	ban := strings.HasPrefix(query.Data, "ban:")
	idStr := strings.TrimPrefix(strings.TrimPrefix(query.Data, "ban:"), "unban:")
	workerID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	status := models.StatusActive
	action := "unban"
	text := fmt.Sprintf("♻️ Пользователь id%d разбанен.", workerID)
	if ban {
		status = models.StatusBanned
		action = "ban"
		text = fmt.Sprintf("🚫 Пользователь id%d забанен.", workerID)
	}
	if err := b.db.UpdateWorkerStatus(ctx, workerID, status); err != nil {
		b.logger.Error("Failed to update worker status", zap.Int64("worker_id", workerID), zap.Error(err))
		return
	}
	b.logAdminAction(ctx, query.From.ID, query.From.UserName, action, "", &workerID)
	b.editText(query, text)
}

// handleServiceCallback stores the selected service in the profit wizard
func (b *Bot) handleServiceCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	state, ok := b.getState(query.From.ID)
	if !ok || state.Command != "add_profit" || state.Step != 3 {
		return
	}

	serviceID, err := strconv.ParseInt(strings.TrimPrefix(query.Data, "service:"), 10, 64)
	if err != nil {
		return
	}
	service, err := b.db.GetService(ctx, serviceID)
	if err != nil {
		b.logger.Error("Service lookup failed", zap.Int64("service_id", serviceID), zap.Error(err))
		b.reply(query.Message.Chat.ID, "Сервис недоступен, выберите другой.")
		return
	}

	state.Data["service"] = service.Name
	state.Step = 4
	b.reply(query.Message.Chat.ID, "Сумма профита:")
}

// handleStageCallback stores the stage and shows the preview
func (b *Bot) handleStageCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	state, ok := b.getState(query.From.ID)
	if !ok || state.Command != "add_profit" || state.Step != 6 {
		return
	}
	state.Data["stage"] = strings.TrimPrefix(query.Data, "stage:")
	b.showProfitPreview(ctx, query.Message.Chat.ID, state)
}

// handleProfitConfirmCallback records the profit on confirm; cancel
// discards everything.
func (b *Bot) handleProfitConfirmCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	state, ok := b.getState(query.From.ID)
	if !ok || state.Command != "add_profit" || state.Step != 7 {
		return
	}

	if query.Data == "cancel_profit" {
		state.Step = -1
		b.editText(query, "❌ Внесение профита отменено. Ничего не записано.")
		return
	}

	workerID := state.Data["worker_id"].(int64)
	amount := state.Data["amount"].(decimal.Decimal)
	percent := state.Data["percent"].(int)
	service := state.Data["service"].(string)
	state.Step = -1

	res, err := b.recorder.RecordProfit(ctx, workerID, amount, percent, service)
	if err != nil {
		if res != nil && res.ProfitID != 0 {
			// Profit stands, sub-ledger incomplete
			b.editText(query, fmt.Sprintf(
				"⚠️ Профит #%d записан, но часть начислений не прошла. Требуется ручная сверка.\n%v",
				res.ProfitID, err))
		} else {
			b.editText(query, fmt.Sprintf("❌ Не удалось записать профит: %v", err))
		}
		return
	}

	b.editText(query, fmt.Sprintf("✅ Профит #%d записан. Воркеру начислено %s.",
		res.ProfitID, fmtAmount(res.Split.WorkerNet)))
	b.logAdminAction(ctx, query.From.ID, query.From.UserName, "add_profit",
		fmt.Sprintf("profit %d, gross %s", res.ProfitID, fmtAmount(amount)), &workerID)

	b.fanOutProfit(ctx, workerID, service, state.Data["client"].(string), res)
}

// fanOutProfit delivers the post-recording notifications. Failures are
// logged by the notifier and never affect the recorded profit.
func (b *Bot) fanOutProfit(ctx context.Context, workerID int64, service, client string, res *profit.Result) {
	b.notifier.SendDirect(ctx, workerID, fmt.Sprintf(
		"💰 Вам начислен профит!\n\nСервис: %s\nНачислено: %s\nВсего заработано: %s",
		service, fmtAmount(res.Split.WorkerNet), fmtAmount(res.NewTotal)))

	if res.RankUp != nil {
		b.notifier.SendDirect(ctx, workerID, fmt.Sprintf(
			"%s <b>Новый ранг: %s!</b>\n\n%s",
			res.RankUp.Emoji, res.RankUp.Name, ranks.RewardMessage(*res.RankUp)))
	}

	if res.Referrer != nil && res.Split.ReferralCut.IsPositive() {
		b.notifier.SendDirect(ctx, res.Referrer.ID, fmt.Sprintf(
			"🤝 Ваш реферал принёс профит! Вам начислено %s.",
			fmtAmount(res.Split.ReferralCut)))
	}

	if res.Mentor != nil && res.Split.MentorCut.IsPositive() {
		b.notifier.SendDirect(ctx, res.Mentor.UserID, fmt.Sprintf(
			"🎓 Ваш студент принёс профит по сервису %s! Ваша доля: %s.",
			service, fmtAmount(res.Split.MentorCut)))
	}

	if b.profitsChannelID != 0 {
		b.notifier.SendToChannel(ctx, b.profitsChannelID, fmt.Sprintf(
			"💰 <b>Новый профит!</b>\n\nСервис: %s\nКлиент: %s\nСумма: %s\nРанг воркера: %s %s",
			service, client, fmtAmount(res.Split.WorkerNet.Add(res.Split.MentorCut)),
			res.Rank.Emoji, res.Rank.Name))
	}
}

// handleBroadcastConfirmCallback launches or cancels the fan-out
func (b *Bot) handleBroadcastConfirmCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	state, ok := b.getState(query.From.ID)
	if !ok || state.Command != "broadcast" || state.Step != 3 {
		return
	}
	state.Step = -1

	if query.Data == "cancel_broadcast" {
		b.editText(query, "❌ Рассылка отменена.")
		return
	}

	recipients := state.Data["recipients"].([]int64)
	text := state.Data["text"].(string)

	var markup *tgbotapi.InlineKeyboardMarkup
	if btnText, ok := state.Data["button_text"].(string); ok {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(btnText, state.Data["button_url"].(string)),
			),
		)
		markup = &kb
	}

	b.editText(query, fmt.Sprintf("🚀 Рассылка запущена (%d получателей).", len(recipients)))
	b.launchBroadcast(query.Message.Chat.ID, recipients, text, markup)
}

// handlePayoutMenuCallback shows the unpaid summary for a ledger
func (b *Bot) handlePayoutMenuCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if !b.isAdmin(query.From.ID) {
		return
	}
	ledger := profit.Ledger(strings.TrimPrefix(query.Data, "payout_menu:"))

	entries, err := b.recorder.UnpaidSummary(ctx, ledger)
	if err != nil {
		b.logger.Error("Unpaid summary failed", zap.String("ledger", string(ledger)), zap.Error(err))
		b.reply(query.Message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	if len(entries) == 0 {
		b.reply(query.Message.Chat.ID, "✅ Невыплаченных начислений нет.")
		return
	}

	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Total)
	}
	text := fmt.Sprintf("💸 <b>К выплате (%s)</b>\n\nПолучателей: %d\nСумма: %s",
		ledgerTitle(ledger), len(entries), fmtAmount(total))
	b.replyWithMarkup(query.Message.Chat.ID, text, payoutKeyboard(ledger, entries))
}

// handlePayoutCallback settles one beneficiary
func (b *Bot) handlePayoutCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if !b.isAdmin(query.From.ID) {
		return
	}
	parts := strings.Split(query.Data, ":")
	if len(parts) != 3 {
		return
	}
	ledger := profit.Ledger(parts[1])
	beneficiaryID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return
	}

	count, err := b.recorder.SettlePayouts(ctx, beneficiaryID, ledger)
	if err != nil {
		b.logger.Error("Settlement failed",
			zap.String("ledger", string(ledger)),
			zap.Int64("beneficiary_id", beneficiaryID),
			zap.Error(err),
		)
		b.reply(query.Message.Chat.ID, "Не удалось провести выплату.")
		return
	}
	if count == 0 {
		b.reply(query.Message.Chat.ID, "Уже выплачено ранее.")
		return
	}

	b.reply(query.Message.Chat.ID, fmt.Sprintf("✅ Выплачено: id%d, записей: %d", beneficiaryID, count))
	b.logAdminAction(ctx, query.From.ID, query.From.UserName, "payout",
		fmt.Sprintf("%s ledger, %d records", ledger, count), &beneficiaryID)
	b.notifier.SendDirect(ctx, beneficiaryID, "💸 Вам отправлена выплата!")
}

// handlePayoutAllCallback settles every pending beneficiary in a ledger
func (b *Bot) handlePayoutAllCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if !b.isAdmin(query.From.ID) {
		return
	}
	ledger := profit.Ledger(strings.TrimPrefix(query.Data, "payout_all:"))

	entries, err := b.recorder.UnpaidSummary(ctx, ledger)
	if err != nil {
		b.logger.Error("Unpaid summary failed", zap.String("ledger", string(ledger)), zap.Error(err))
		b.reply(query.Message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}

	settled := 0
	for _, e := range entries {
		count, err := b.recorder.SettlePayouts(ctx, e.UserID, ledger)
		if err != nil {
			b.logger.Error("Settlement failed",
				zap.String("ledger", string(ledger)),
				zap.Int64("beneficiary_id", e.UserID),
				zap.Error(err),
			)
			continue
		}
		if count > 0 {
			settled++
			b.notifier.SendDirect(ctx, e.UserID, "💸 Вам отправлена выплата!")
		}
	}

	b.reply(query.Message.Chat.ID, fmt.Sprintf("✅ Выплаты проведены: %d из %d получателей", settled, len(entries)))
	b.logAdminAction(ctx, query.From.ID, query.From.UserName, "payout_all",
		fmt.Sprintf("%s ledger, %d beneficiaries", ledger, settled), nil)
}

func ledgerTitle(l profit.Ledger) string {
	switch l {
	case profit.LedgerWorker:
		return "воркеры"
	case profit.LedgerReferral:
		return "рефералы"
	case profit.LedgerMentor:
		return "менторы"
	}
	return string(l)
}

// editText replaces the text of the message the callback came from
func (b *Bot) editText(query *tgbotapi.CallbackQuery, text string) {
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	b.sendMessage(edit)
}
