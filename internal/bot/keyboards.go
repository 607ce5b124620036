package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mainbot/internal/models"
	"mainbot/internal/profit"
)

func adminMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 Внести профит", "admin:profit"),
			tgbotapi.NewInlineKeyboardButtonData("💸 Выплаты", "admin:payouts"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Заявки", "admin:applications"),
			tgbotapi.NewInlineKeyboardButtonData("📣 Рассылка", "admin:broadcast"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛠 Сервисы", "admin:services"),
			tgbotapi.NewInlineKeyboardButtonData("🎓 Менторы", "admin:mentors"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 Поиск пользователя", "admin:find"),
		),
	)
}

func mentorMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Добавить", "mentors:add"),
			tgbotapi.NewInlineKeyboardButtonData("🔗 Назначить", "mentors:assign"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✂️ Открепить", "mentors:remove"),
			tgbotapi.NewInlineKeyboardButtonData("📨 Рассылка студентам", "mentors:broadcast"),
		),
	)
}

func serviceMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Добавить", "services:add"),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Отключить", "services:remove"),
		),
	)
}

func moderationKeyboard(workerID int64, banned bool) tgbotapi.InlineKeyboardMarkup {
	if banned {
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("♻️ Разбанить", fmt.Sprintf("unban:%d", workerID)),
			),
		)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Забанить", fmt.Sprintf("ban:%d", workerID)),
		),
	)
}

// serviceKeyboard lays out active services two per row
func serviceKeyboard(services []models.Service) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var currentRow []tgbotapi.InlineKeyboardButton
	for i, s := range services {
		label := s.Name
		if s.Icon != "" {
			label = s.Icon + " " + s.Name
		}
		currentRow = append(currentRow, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("service:%d", s.ID)))
		if len(currentRow) == 2 || i == len(services)-1 {
			rows = append(rows, currentRow)
			currentRow = []tgbotapi.InlineKeyboardButton{}
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func stageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💵 Депозит", "stage:Депозит"),
			tgbotapi.NewInlineKeyboardButtonData("🧾 Налог", "stage:Налог"),
		),
	)
}

func confirmProfitKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", "confirm_profit"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", "cancel_profit"),
		),
	)
}

func confirmBroadcastKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚀 Запустить", "confirm_broadcast"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", "cancel_broadcast"),
		),
	)
}

func applicationKeyboard(workerID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Принять", fmt.Sprintf("approve:%d", workerID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", fmt.Sprintf("reject:%d", workerID)),
		),
	)
}

func agreementKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Принимаю условия", "agree"),
		),
	)
}

func payoutLedgerKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👷 Воркеры", "payout_menu:worker"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🤝 Рефералы", "payout_menu:referral"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎓 Менторы", "payout_menu:mentor"),
		),
	)
}

// payoutKeyboard lists pending beneficiaries plus a pay-all button
func payoutKeyboard(ledger profit.Ledger, entries []models.UnpaidEntry) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, e := range entries {
		label := e.Username
		if label == "" {
			label = e.FullName
		}
		if label == "" {
			label = fmt.Sprintf("id%d", e.UserID)
		}
		label = fmt.Sprintf("%s — %s (%d)", label, fmtAmount(e.Total), e.Count)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("payout:%s:%d", ledger, e.UserID)),
		))
	}
	if len(entries) > 1 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💸 Выплатить всем", fmt.Sprintf("payout_all:%s", ledger)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func topPeriodKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("За всё время", "top:all"),
			tgbotapi.NewInlineKeyboardButtonData("Месяц", "top:month"),
			tgbotapi.NewInlineKeyboardButtonData("Неделя", "top:week"),
		),
	)
}
