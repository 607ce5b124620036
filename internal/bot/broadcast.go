package bot

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MessageSender is the slice of the Telegram API the fan-out needs
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Report summarizes a finished fan-out
type Report struct {
	Total   int
	Success int
	Blocked int
	Failed  int
}

// Broadcast sends one payload to many recipients sequentially, pacing
// sends with Delay. Outcomes are classified as success, blocked (the
// user blocked the bot) or failed. A rate-limit error is retried once
// after the server-requested backoff. A cancelled broadcast is not
// resumable.
type Broadcast struct {
	Sender    MessageSender
	Delay     time.Duration
	BatchSize int
	Logger    *zap.Logger
	// Progress is called after every BatchSize sends and once at the
	// end. May be nil.
	Progress func(done, total int)

	cancelled atomic.Bool
}

// Cancel stops the run after the in-flight send
func (br *Broadcast) Cancel() {
	br.cancelled.Store(true)
}

// Run delivers the payload built by build to every recipient. Blocks
// until done or cancelled.
func (br *Broadcast) Run(recipients []int64, build func(chatID int64) tgbotapi.Chattable) Report {
	report := Report{Total: len(recipients)}

	for i, chatID := range recipients {
		if br.cancelled.Load() {
			br.Logger.Info("Broadcast cancelled",
				zap.Int("sent", i),
				zap.Int("total", report.Total),
			)
			break
		}

		switch br.sendOne(build(chatID)) {
		case outcomeSuccess:
			report.Success++
		case outcomeBlocked:
			report.Blocked++
		case outcomeFailed:
			report.Failed++
		}

		done := i + 1
		if br.Progress != nil && br.BatchSize > 0 && done%br.BatchSize == 0 {
			br.Progress(done, report.Total)
		}

		if done < len(recipients) {
			time.Sleep(br.Delay)
		}
	}

	if br.Progress != nil {
		br.Progress(report.Success+report.Blocked+report.Failed, report.Total)
	}
	return report
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeBlocked
	outcomeFailed
)

func (br *Broadcast) sendOne(msg tgbotapi.Chattable) outcome {
	_, err := br.Sender.Send(msg)
	if err == nil {
		return outcomeSuccess
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 403 {
			return outcomeBlocked
		}
		if apiErr.RetryAfter > 0 {
			// Rate limited: back off and retry once
			time.Sleep(time.Duration(apiErr.RetryAfter) * time.Second)
			if _, err := br.Sender.Send(msg); err == nil {
				return outcomeSuccess
			}
			return outcomeFailed
		}
	}

	br.Logger.Warn("Broadcast send failed", zap.Error(err))
	return outcomeFailed
}

// launchBroadcast runs the fan-out in a detached goroutine, editing a
// status message in the operator's chat as it progresses.
func (b *Bot) launchBroadcast(adminChatID int64, recipients []int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if b.api == nil {
		return // For testing
	}

	var statusMsgID int
	status := tgbotapi.NewMessage(adminChatID, fmt.Sprintf("📤 Отправлено 0 из %d…", len(recipients)))
	if sent, err := b.api.Send(status); err == nil {
		statusMsgID = sent.MessageID
	}

	br := &Broadcast{
		Sender:    b.api,
		Delay:     b.broadcastDelay,
		BatchSize: b.broadcastBatchSize,
		Logger:    b.logger,
	}
	if statusMsgID != 0 {
		br.Progress = func(done, total int) {
			b.sendMessage(tgbotapi.NewEditMessageText(adminChatID, statusMsgID,
				fmt.Sprintf("📤 Отправлено %d из %d…", done, total)))
		}
	}

	go func() {
		report := br.Run(recipients, func(chatID int64) tgbotapi.Chattable {
			msg := tgbotapi.NewMessage(chatID, text)
			msg.ParseMode = tgbotapi.ModeHTML
			if markup != nil {
				msg.ReplyMarkup = *markup
			}
			return msg
		})

		b.logger.Info("Broadcast finished",
			zap.Int("total", report.Total),
			zap.Int("success", report.Success),
			zap.Int("blocked", report.Blocked),
			zap.Int("failed", report.Failed),
		)
		b.reply(adminChatID, fmt.Sprintf(
			"📣 Рассылка завершена\n\nВсего: %d\n✅ Доставлено: %d\n🚫 Заблокировали бота: %d\n❌ Ошибки: %d",
			report.Total, report.Success, report.Blocked, report.Failed))
	}()
}
