package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mainbot/internal/models"
	"mainbot/internal/ranks"
	"mainbot/internal/storage"
)

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	userID := message.From.ID

	switch state.Command {
	case "register":
		b.handleRegisterConversation(ctx, message, state)
	case "add_profit":
		b.handleProfitConversation(ctx, message, state)
	case "broadcast":
		b.handleBroadcastConversation(ctx, message, state)
	case "add_service":
		b.handleAddServiceConversation(ctx, message, state)
	case "remove_service":
		b.handleRemoveServiceConversation(ctx, message, state)
	case "add_mentor":
		b.handleAddMentorConversation(ctx, message, state)
	case "assign_mentor":
		b.handleAssignMentorConversation(ctx, message, state)
	case "remove_mentor":
		b.handleRemoveMentorConversation(ctx, message, state)
	case "find_user":
		b.handleFindUserConversation(ctx, message, state)
	case "mentor_broadcast":
		b.handleMentorBroadcastConversation(ctx, message, state)
	}

	// Clean up completed conversations
	if state.Step == -1 {
		b.clearState(userID)
	}
}

// handleRegisterConversation collects the application answers
func (b *Bot) handleRegisterConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for the agreement button
		b.reply(message.Chat.ID, "Сначала примите условия кнопкой выше.")

	case 2: // Waiting for experience
		state.Data["experience"] = message.Text
		state.Step = 3
		b.reply(message.Chat.ID, "Откуда вы узнали о команде?")

	case 3: // Waiting for source, then submit
		state.Data["source"] = message.Text
		b.submitApplication(ctx, message, state)
		state.Step = -1
	}
}

func (b *Bot) submitApplication(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	userID := message.From.ID

	worker := models.Worker{
		ID:             userID,
		Username:       message.From.UserName,
		FullName:       strings.TrimSpace(message.From.FirstName + " " + message.From.LastName),
		Status:         models.StatusPending,
		ExperienceText: state.Data["experience"].(string),
		SourceText:     state.Data["source"].(string),
	}
	if refID, ok := state.Data["referrer_id"].(int64); ok {
		worker.ReferrerID = &refID
	}

	if err := b.db.CreateWorker(ctx, worker); err != nil {
		b.logger.Error("Failed to create worker", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(message.Chat.ID, "Не удалось отправить заявку. Попробуйте позже.")
		return
	}

	b.reply(message.Chat.ID, "✅ Заявка отправлена! Мы сообщим о решении.")

	if b.applicationsChannelID != 0 {
		var sb strings.Builder
		sb.WriteString("📋 <b>Новая заявка</b>\n\n")
		sb.WriteString(fmt.Sprintf("Пользователь: %s (id%d)\n", workerLabel(&worker), userID))
		sb.WriteString(fmt.Sprintf("Опыт: %s\n", worker.ExperienceText))
		sb.WriteString(fmt.Sprintf("Источник: %s\n", worker.SourceText))
		if worker.ReferrerID != nil {
			sb.WriteString(fmt.Sprintf("Реферер: id%d\n", *worker.ReferrerID))
		}

		msg := tgbotapi.NewMessage(b.applicationsChannelID, sb.String())
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = applicationKeyboard(userID)
		b.sendMessage(msg)
	}
}

// handleProfitConversation drives the operator's profit wizard. Nothing
// is written until the operator confirms the preview.
func (b *Bot) handleProfitConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for the worker reference
		worker, err := b.lookupWorker(ctx, message.Text)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				b.reply(message.Chat.ID, "Воркер не найден. Укажите @username или ID:")
				return
			}
			b.logger.Error("Worker lookup failed", zap.Error(err))
			b.reply(message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
			state.Step = -1
			return
		}
		if worker.Status != models.StatusActive {
			b.reply(message.Chat.ID, "Этот воркер не активен. Укажите другого:")
			return
		}
		state.Data["worker_id"] = worker.ID
		state.Data["worker_label"] = workerLabel(worker)
		state.Step = 2
		b.reply(message.Chat.ID, "Имя клиента:")

	case 2: // Waiting for the client name
		state.Data["client"] = message.Text
		state.Step = 3

		services, err := b.db.ListServices(ctx)
		if err != nil || len(services) == 0 {
			if err != nil {
				b.logger.Error("Failed to list services", zap.Error(err))
			}
			b.reply(message.Chat.ID, "Нет доступных сервисов. Сначала добавьте сервис.")
			state.Step = -1
			return
		}
		b.replyWithMarkup(message.Chat.ID, "Выберите сервис:", serviceKeyboard(services))

	case 3: // Waiting for service selection via keyboard
		b.reply(message.Chat.ID, "Выберите сервис кнопкой выше.")

	case 4: // Waiting for the gross amount
		amount, err := decimal.NewFromString(strings.ReplaceAll(message.Text, ",", "."))
		if err != nil || !amount.IsPositive() {
			b.reply(message.Chat.ID, "❌ Некорректная сумма. Введите положительное число:")
			return
		}
		state.Data["amount"] = amount
		state.Step = 5
		b.reply(message.Chat.ID, "Процент воркера (0–100):")

	case 5: // Waiting for the worker percent
		percent, err := strconv.Atoi(message.Text)
		if err != nil || percent < 0 || percent > 100 {
			b.reply(message.Chat.ID, "❌ Процент должен быть числом от 0 до 100:")
			return
		}
		state.Data["percent"] = percent
		state.Step = 6
		b.replyWithMarkup(message.Chat.ID, "Этап:", stageKeyboard())

	case 6: // Waiting for stage selection via keyboard
		b.reply(message.Chat.ID, "Выберите этап кнопкой выше.")

	case 7: // Waiting for the confirmation button
		b.reply(message.Chat.ID, "Подтвердите или отмените кнопками выше.")
	}
}

// showProfitPreview computes the split without writing and asks for
// confirmation.
func (b *Bot) showProfitPreview(ctx context.Context, chatID int64, state *ConversationState) {
	workerID := state.Data["worker_id"].(int64)
	amount := state.Data["amount"].(decimal.Decimal)
	percent := state.Data["percent"].(int)
	service := state.Data["service"].(string)

	res, err := b.recorder.Preview(ctx, workerID, amount, percent, service)
	if err != nil {
		b.logger.Error("Profit preview failed", zap.Int64("worker_id", workerID), zap.Error(err))
		b.reply(chatID, fmt.Sprintf("❌ Ошибка расчёта: %v", err))
		state.Step = -1
		return
	}

	var sb strings.Builder
	sb.WriteString("💰 <b>Проверьте данные</b>\n\n")
	sb.WriteString(fmt.Sprintf("Воркер: %s\n", state.Data["worker_label"]))
	sb.WriteString(fmt.Sprintf("Клиент: %s\n", state.Data["client"]))
	sb.WriteString(fmt.Sprintf("Сервис: %s\n", service))
	sb.WriteString(fmt.Sprintf("Этап: %s\n\n", state.Data["stage"]))
	sb.WriteString(fmt.Sprintf("Сумма: %s\n", fmtAmount(amount)))
	sb.WriteString(fmt.Sprintf("База (%d%%): %s\n", percent, fmtAmount(res.Split.Base)))
	if res.Split.Bonus.IsPositive() {
		sb.WriteString(fmt.Sprintf("Бонус ранга (+%d%%): %s\n", res.Rank.Bonus, fmtAmount(res.Split.Bonus)))
	}
	if res.Split.MentorCut.IsPositive() {
		sb.WriteString(fmt.Sprintf("Доля ментора: %s\n", fmtAmount(res.Split.MentorCut)))
	}
	sb.WriteString(fmt.Sprintf("<b>Воркеру: %s</b>\n", fmtAmount(res.Split.WorkerNet)))
	if res.Split.ReferralCut.IsPositive() {
		sb.WriteString(fmt.Sprintf("Рефереру (из средств команды): %s\n", fmtAmount(res.Split.ReferralCut)))
	}
	if res.RankUp != nil {
		sb.WriteString(fmt.Sprintf("\n🎉 Воркер получит ранг %s %s!\n", res.RankUp.Emoji, res.RankUp.Name))
	}

	state.Step = 7
	b.replyWithMarkup(chatID, sb.String(), confirmProfitKeyboard())
}

// handleBroadcastConversation collects the broadcast text and optional
// button, then shows the preview.
func (b *Bot) handleBroadcastConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for the text
		state.Data["text"] = message.Text
		state.Step = 2
		b.reply(message.Chat.ID, "Кнопка в формате <code>Текст | URL</code>, либо «-» чтобы пропустить:")

	case 2: // Waiting for the optional button
		if message.Text != "-" {
			parts := strings.SplitN(message.Text, "|", 2)
			if len(parts) != 2 {
				b.reply(message.Chat.ID, "❌ Формат: <code>Текст | URL</code>, либо «-»:")
				return
			}
			state.Data["button_text"] = strings.TrimSpace(parts[0])
			state.Data["button_url"] = strings.TrimSpace(parts[1])
		}

		ids, err := b.db.ActiveWorkerIDs(ctx)
		if err != nil {
			b.logger.Error("Failed to list recipients", zap.Error(err))
			b.reply(message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
			state.Step = -1
			return
		}
		state.Data["recipients"] = ids
		state.Step = 3

		preview := fmt.Sprintf("📣 <b>Предпросмотр</b>\n\n%s\n\nПолучателей: %d",
			state.Data["text"], len(ids))
		b.replyWithMarkup(message.Chat.ID, preview, confirmBroadcastKeyboard())

	case 3: // Waiting for the confirmation button
		b.reply(message.Chat.ID, "Подтвердите или отмените кнопками выше.")
	}
}

// handleAddServiceConversation collects the new service fields, "-"
// skips optional ones.
func (b *Bot) handleAddServiceConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	optional := func(s string) string {
		if s == "-" {
			return ""
		}
		return s
	}

	switch state.Step {
	case 1:
		state.Data["name"] = message.Text
		state.Step = 2
		b.reply(message.Chat.ID, "Иконка (эмодзи), либо «-»:")
	case 2:
		state.Data["icon"] = optional(message.Text)
		state.Step = 3
		b.reply(message.Chat.ID, "Описание, либо «-»:")
	case 3:
		state.Data["description"] = optional(message.Text)
		state.Step = 4
		b.reply(message.Chat.ID, "Ссылка на мануал, либо «-»:")
	case 4:
		state.Data["manual_link"] = optional(message.Text)
		state.Step = 5
		b.reply(message.Chat.ID, "Ссылка на бота сервиса, либо «-»:")
	case 5:
		service := models.Service{
			Name:        state.Data["name"].(string),
			Icon:        state.Data["icon"].(string),
			Description: state.Data["description"].(string),
			ManualLink:  state.Data["manual_link"].(string),
			BotLink:     optional(message.Text),
		}
		id, err := b.db.CreateService(ctx, service)
		if err != nil {
			b.logger.Error("Failed to create service", zap.Error(err))
			b.reply(message.Chat.ID, "Не удалось добавить сервис.")
		} else {
			b.reply(message.Chat.ID, fmt.Sprintf("✅ Сервис «%s» добавлен (#%d)", service.Name, id))
			b.logAdminAction(ctx, message.From.ID, message.From.UserName, "add_service", service.Name, nil)
		}
		state.Step = -1
	}
}

func (b *Bot) handleRemoveServiceConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	if state.Step != 1 {
		return
	}
	id, err := strconv.ParseInt(message.Text, 10, 64)
	if err != nil {
		b.reply(message.Chat.ID, "❌ Укажите числовой ID сервиса:")
		return
	}
	if err := b.db.DeactivateService(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.reply(message.Chat.ID, "Сервис не найден или уже отключён.")
		} else {
			b.logger.Error("Failed to deactivate service", zap.Int64("service_id", id), zap.Error(err))
			b.reply(message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		}
	} else {
		b.reply(message.Chat.ID, "🗑 Сервис отключён. История профитов сохранена.")
		b.logAdminAction(ctx, message.From.ID, message.From.UserName, "remove_service", fmt.Sprintf("service %d", id), nil)
	}
	state.Step = -1
}

func (b *Bot) handleAddMentorConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for the mentor's account
		worker, err := b.lookupWorker(ctx, message.Text)
		if err != nil {
			b.reply(message.Chat.ID, "Пользователь не найден. Укажите @username или ID:")
			return
		}
		state.Data["user_id"] = worker.ID
		state.Step = 2
		b.reply(message.Chat.ID, "Название сервиса ментора:")

	case 2:
		state.Data["service"] = message.Text
		state.Step = 3
		b.reply(message.Chat.ID, "Процент ментора (1–100):")

	case 3:
		percent, err := strconv.Atoi(message.Text)
		if err != nil || percent < 1 || percent > 100 {
			b.reply(message.Chat.ID, "❌ Процент должен быть числом от 1 до 100:")
			return
		}
		userID := state.Data["user_id"].(int64)
		service := state.Data["service"].(string)
		id, err := b.db.CreateMentor(ctx, userID, service, percent)
		if err != nil {
			b.logger.Error("Failed to create mentor", zap.Int64("user_id", userID), zap.Error(err))
			b.reply(message.Chat.ID, "Не удалось добавить ментора.")
		} else {
			b.reply(message.Chat.ID, fmt.Sprintf("✅ Ментор добавлен (#%d): %s, %d%%", id, service, percent))
			b.logAdminAction(ctx, message.From.ID, message.From.UserName, "add_mentor",
				fmt.Sprintf("%s %d%%", service, percent), &userID)
		}
		state.Step = -1
	}
}

func (b *Bot) handleAssignMentorConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for the student
		worker, err := b.lookupWorker(ctx, message.Text)
		if err != nil {
			b.reply(message.Chat.ID, "Воркер не найден. Укажите @username или ID:")
			return
		}
		state.Data["student_id"] = worker.ID
		state.Step = 2

		mentors, err := b.db.ListMentors(ctx)
		if err != nil || len(mentors) == 0 {
			b.reply(message.Chat.ID, "Нет активных менторов.")
			state.Step = -1
			return
		}
		var sb strings.Builder
		sb.WriteString("Укажите ID ментора:\n\n")
		for _, m := range mentors {
			sb.WriteString(fmt.Sprintf("%d. @%s — %s (%d%%)\n", m.ID, m.Username, m.ServiceName, m.Percent))
		}
		b.reply(message.Chat.ID, sb.String())

	case 2: // Waiting for the mentor id
		mentorID, err := strconv.ParseInt(message.Text, 10, 64)
		if err != nil {
			b.reply(message.Chat.ID, "❌ Укажите числовой ID ментора:")
			return
		}
		if _, err := b.db.GetMentor(ctx, mentorID); err != nil {
			b.reply(message.Chat.ID, "Ментор не найден. Укажите ID из списка:")
			return
		}
		studentID := state.Data["student_id"].(int64)
		if err := b.db.AssignMentor(ctx, studentID, mentorID); err != nil {
			b.logger.Error("Failed to assign mentor", zap.Int64("student_id", studentID), zap.Error(err))
			b.reply(message.Chat.ID, "Не удалось назначить ментора.")
		} else {
			b.reply(message.Chat.ID, "✅ Ментор назначен.")
			b.logAdminAction(ctx, message.From.ID, message.From.UserName, "assign_mentor",
				fmt.Sprintf("mentor %d", mentorID), &studentID)
		}
		state.Step = -1
	}
}

func (b *Bot) handleRemoveMentorConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	if state.Step != 1 {
		return
	}
	worker, err := b.lookupWorker(ctx, message.Text)
	if err != nil {
		b.reply(message.Chat.ID, "Воркер не найден. Укажите @username или ID:")
		return
	}
	if err := b.db.RemoveMentor(ctx, worker.ID); err != nil {
		b.logger.Error("Failed to remove mentor", zap.Int64("worker_id", worker.ID), zap.Error(err))
		b.reply(message.Chat.ID, "Не удалось открепить ментора.")
	} else {
		b.reply(message.Chat.ID, "✂️ Ментор откреплён.")
		b.logAdminAction(ctx, message.From.ID, message.From.UserName, "remove_mentor", "", &worker.ID)
	}
	state.Step = -1
}

func (b *Bot) handleFindUserConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	if state.Step != 1 {
		return
	}
	worker, err := b.lookupWorker(ctx, message.Text)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.reply(message.Chat.ID, "Пользователь не найден. Укажите @username или ID:")
			return
		}
		b.logger.Error("Worker lookup failed", zap.Error(err))
		b.reply(message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		state.Step = -1
		return
	}

	stats, err := b.db.GetWorkerStats(ctx, worker.ID)
	if err != nil {
		b.logger.Warn("Stats lookup failed", zap.Int64("worker_id", worker.ID), zap.Error(err))
		stats = &models.WorkerStats{}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👤 <b>%s</b> (id%d)\n\n", workerLabel(worker), worker.ID))
	sb.WriteString(fmt.Sprintf("Статус: %s\n", worker.Status))
	sb.WriteString(fmt.Sprintf("Ранг: %s\n", ranks.Badge(worker.TotalProfit)))
	sb.WriteString(fmt.Sprintf("Всего: %s за %d профитов\n", fmtAmount(stats.TotalProfit), stats.TotalCount))
	sb.WriteString(fmt.Sprintf("За месяц: %s\n", fmtAmount(stats.MonthProfit)))
	sb.WriteString(fmt.Sprintf("За неделю: %s\n", fmtAmount(stats.WeekProfit)))

	b.replyWithMarkup(message.Chat.ID, sb.String(), moderationKeyboard(worker.ID, worker.Status == models.StatusBanned))
	state.Step = -1
}

// handleMentorBroadcastConversation queues a mentor-to-students
// message for the background drainer.
func (b *Bot) handleMentorBroadcastConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for the mentor id
		mentorID, err := strconv.ParseInt(message.Text, 10, 64)
		if err != nil {
			b.reply(message.Chat.ID, "❌ Укажите числовой ID ментора:")
			return
		}
		if _, err := b.db.GetMentor(ctx, mentorID); err != nil {
			b.reply(message.Chat.ID, "Ментор не найден. Укажите другой ID:")
			return
		}
		state.Data["mentor_id"] = mentorID
		state.Step = 2
		b.reply(message.Chat.ID, "Текст сообщения студентам:")

	case 2: // Waiting for the text
		mentorID := state.Data["mentor_id"].(int64)
		students, err := b.mentorStudents(ctx, mentorID)
		if err != nil {
			b.logger.Error("Failed to list students", zap.Int64("mentor_id", mentorID), zap.Error(err))
			b.reply(message.Chat.ID, "Произошла ошибка. Попробуйте позже.")
			state.Step = -1
			return
		}
		if len(students) == 0 {
			b.reply(message.Chat.ID, "У этого ментора нет студентов.")
			state.Step = -1
			return
		}

		id, err := b.db.CreateMentorBroadcast(ctx, mentorID, message.Text, students)
		if err != nil {
			b.logger.Error("Failed to queue mentor broadcast", zap.Int64("mentor_id", mentorID), zap.Error(err))
			b.reply(message.Chat.ID, "Не удалось поставить рассылку в очередь.")
		} else {
			b.reply(message.Chat.ID, fmt.Sprintf("📨 Рассылка #%d поставлена в очередь (%d студентов)", id, len(students)))
		}
		state.Step = -1
	}
}

// mentorStudents returns active workers assigned to the mentor
func (b *Bot) mentorStudents(ctx context.Context, mentorID int64) ([]int64, error) {
	workers, err := b.db.ListWorkersByStatus(ctx, models.StatusActive)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, w := range workers {
		if w.MentorID != nil && *w.MentorID == mentorID {
			ids = append(ids, w.ID)
		}
	}
	return ids, nil
}

// lookupWorker resolves "@username", "username" or a numeric id
func (b *Bot) lookupWorker(ctx context.Context, ref string) (*models.Worker, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return b.db.GetWorker(ctx, id)
	}
	return b.db.GetWorkerByUsername(ctx, strings.TrimPrefix(ref, "@"))
}
