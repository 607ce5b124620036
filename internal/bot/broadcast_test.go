package bot

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// scriptedSender fails specific chat ids with scripted errors. Errors
// in firstErr fire only on the first attempt per chat, so retry paths
// can be exercised.
type scriptedSender struct {
	firstErr map[int64]error
	always   map[int64]error
	sent     []int64
	attempts map[int64]int
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{
		firstErr: make(map[int64]error),
		always:   make(map[int64]error),
		attempts: make(map[int64]int),
	}
}

func (s *scriptedSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	chatID := msg.ChatID
	s.attempts[chatID]++

	if err, ok := s.always[chatID]; ok {
		return tgbotapi.Message{}, err
	}
	if err, ok := s.firstErr[chatID]; ok && s.attempts[chatID] == 1 {
		return tgbotapi.Message{}, err
	}

	s.sent = append(s.sent, chatID)
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

func buildText(chatID int64) tgbotapi.Chattable {
	return tgbotapi.NewMessage(chatID, "hello")
}

func TestBroadcast_Classification(t *testing.T) {
	sender := newScriptedSender()
	sender.always[2] = &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	sender.always[4] = errors.New("network down")

	br := &Broadcast{Sender: sender, Logger: zap.NewNop()}
	report := br.Run([]int64{1, 2, 3, 4, 5}, buildText)

	if report.Total != 5 {
		t.Errorf("Expected total 5, got %d", report.Total)
	}
	if report.Success != 3 {
		t.Errorf("Expected 3 successes, got %d", report.Success)
	}
	if report.Blocked != 1 {
		t.Errorf("Expected 1 blocked, got %d", report.Blocked)
	}
	if report.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", report.Failed)
	}
}

func TestBroadcast_RateLimitRetriesOnce(t *testing.T) {
	sender := newScriptedSender()
	sender.firstErr[2] = &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1},
	}

	br := &Broadcast{Sender: sender, Logger: zap.NewNop()}
	report := br.Run([]int64{1, 2, 3}, buildText)

	if report.Success != 3 {
		t.Errorf("Expected all 3 to succeed after retry, got %d", report.Success)
	}
	if sender.attempts[2] != 2 {
		t.Errorf("Expected 2 attempts for rate-limited chat, got %d", sender.attempts[2])
	}
}

func TestBroadcast_RateLimitRetryFails(t *testing.T) {
	sender := newScriptedSender()
	sender.always[2] = &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1},
	}

	br := &Broadcast{Sender: sender, Logger: zap.NewNop()}
	report := br.Run([]int64{2}, buildText)

	if report.Failed != 1 {
		t.Errorf("Expected 1 failed after retry, got %d", report.Failed)
	}
	// One retry only
	if sender.attempts[2] != 2 {
		t.Errorf("Expected exactly 2 attempts, got %d", sender.attempts[2])
	}
}

func TestBroadcast_Cancel(t *testing.T) {
	sender := newScriptedSender()
	br := &Broadcast{Sender: sender, Logger: zap.NewNop()}
	br.Cancel()

	report := br.Run([]int64{1, 2, 3}, buildText)

	if len(sender.sent) != 0 {
		t.Errorf("Expected no sends after cancel, got %d", len(sender.sent))
	}
	if report.Success != 0 {
		t.Errorf("Expected 0 successes, got %d", report.Success)
	}
}

func TestBroadcast_RerunResendsEveryone(t *testing.T) {
	// A finished or cancelled broadcast keeps no delivery state: running
	// it again targets the full recipient list.
	sender := newScriptedSender()
	br := &Broadcast{Sender: sender, Logger: zap.NewNop()}

	br.Run([]int64{1, 2}, buildText)
	br.Run([]int64{1, 2}, buildText)

	if sender.attempts[1] != 2 || sender.attempts[2] != 2 {
		t.Errorf("Expected every recipient contacted twice, got %v", sender.attempts)
	}
}

func TestBroadcast_ProgressEveryBatch(t *testing.T) {
	sender := newScriptedSender()
	var calls []int
	br := &Broadcast{
		Sender:    sender,
		BatchSize: 2,
		Logger:    zap.NewNop(),
		Progress:  func(done, total int) { calls = append(calls, done) },
	}

	br.Run([]int64{1, 2, 3, 4, 5}, buildText)

	// After sends 2 and 4, plus the final call
	if len(calls) != 3 || calls[0] != 2 || calls[1] != 4 || calls[2] != 5 {
		t.Errorf("Unexpected progress calls: %v", calls)
	}
}
