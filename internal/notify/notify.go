package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier delivers fire-and-forget messages. Implementations log
// delivery failures and never propagate them: a worker not receiving
// a notification must not fail the operation that produced it.
type Notifier interface {
	SendDirect(ctx context.Context, userID int64, text string)
	SendToChannel(ctx context.Context, channelID int64, text string)
}

// Sender is the slice of the Telegram API the notifier needs
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram is the Telegram implementation of Notifier
type Telegram struct {
	api    Sender
	logger *zap.Logger
}

// NewTelegram creates a Telegram notifier
func NewTelegram(api Sender, logger *zap.Logger) *Telegram {
	return &Telegram{api: api, logger: logger}
}

// SendDirect sends a private message to a user
func (t *Telegram) SendDirect(ctx context.Context, userID int64, text string) {
	t.send(userID, text)
}

// SendToChannel posts a message to a channel
func (t *Telegram) SendToChannel(ctx context.Context, channelID int64, text string) {
	t.send(channelID, text)
}

func (t *Telegram) send(chatID int64, text string) {
	if t.api == nil {
		return // For testing
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Warn("Notification delivery failed",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// Nop is a Notifier that does nothing. Used in tests.
type Nop struct{}

func (Nop) SendDirect(ctx context.Context, userID int64, text string)      {}
func (Nop) SendToChannel(ctx context.Context, channelID int64, text string) {}
