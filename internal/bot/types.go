package bot

import (
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mainbot/internal/notify"
	"mainbot/internal/profit"
	"mainbot/internal/storage"
)

// Bot represents the Telegram bot wrapper
type Bot struct {
	api      *tgbotapi.BotAPI
	db       storage.Storage
	recorder *profit.Recorder
	notifier notify.Notifier
	admins   map[int64]bool
	states   map[int64]*ConversationState
	statesMu sync.RWMutex
	logger   *zap.Logger

	profitsChannelID      int64
	applicationsChannelID int64
	broadcastDelay        time.Duration
	broadcastBatchSize    int

	queue *MentorQueue
}

// ConversationState tracks the state of multi-step commands
type ConversationState struct {
	Command string
	Step    int
	Data    map[string]interface{}
}

func (b *Bot) getState(userID int64) (*ConversationState, bool) {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	state, ok := b.states[userID]
	return state, ok
}

func (b *Bot) setState(userID int64, state *ConversationState) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.states[userID] = state
}

func (b *Bot) clearState(userID int64) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	delete(b.states, userID)
}
