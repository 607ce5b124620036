package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mainbot/internal/storage"
)

const (
	queuePollInterval  = 10 * time.Second
	queueErrorInterval = 30 * time.Second
)

// MentorQueue drains queued mentor-to-students broadcasts in the
// background: pending → sending → completed|failed, with a per-student
// delivery row for each recipient.
type MentorQueue struct {
	db     storage.Storage
	sender MessageSender
	logger *zap.Logger

	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewMentorQueue creates the drainer. It does not start polling.
func NewMentorQueue(b *Bot, db storage.Storage, logger *zap.Logger) *MentorQueue {
	q := &MentorQueue{
		db:       db,
		logger:   logger,
		interval: queuePollInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if b.api != nil {
		q.sender = b.api
	}
	return q
}

// Start launches the poll loop
func (q *MentorQueue) Start() {
	go q.run()
}

// Stop terminates the poll loop and waits for the current drain pass
func (q *MentorQueue) Stop() {
	close(q.stop)
	<-q.done
}

func (q *MentorQueue) run() {
	defer close(q.done)
	q.logger.Info("Mentor broadcast queue started")

	for {
		interval := q.interval
		if err := q.drain(context.Background()); err != nil {
			q.logger.Error("Mentor broadcast drain failed", zap.Error(err))
			interval = queueErrorInterval
		}

		select {
		case <-q.stop:
			q.logger.Info("Mentor broadcast queue stopped")
			return
		case <-time.After(interval):
		}
	}
}

// drain processes every pending broadcast once
func (q *MentorQueue) drain(ctx context.Context) error {
	pending, err := q.db.PendingMentorBroadcasts(ctx)
	if err != nil {
		return fmt.Errorf("list pending broadcasts: %w", err)
	}

	for _, broadcast := range pending {
		if err := q.deliver(ctx, broadcast.ID, broadcast.MentorID, broadcast.MessageText); err != nil {
			q.logger.Error("Mentor broadcast delivery failed",
				zap.Int64("broadcast_id", broadcast.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (q *MentorQueue) deliver(ctx context.Context, broadcastID, mentorID int64, text string) error {
	if err := q.db.UpdateBroadcastStatus(ctx, broadcastID, "sending", 0); err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}

	recipients, err := q.db.BroadcastRecipients(ctx, broadcastID)
	if err != nil {
		q.db.UpdateBroadcastStatus(ctx, broadcastID, "failed", 0)
		return fmt.Errorf("list recipients: %w", err)
	}

	header := "🎓 <b>Сообщение от вашего ментора</b>\n\n"
	sent := 0
	for _, r := range recipients {
		if r.Status != "pending" {
			continue
		}

		status, errText := "sent", ""
		if err := q.send(r.StudentID, header+text); err != nil {
			status, errText = "failed", err.Error()
		} else {
			sent++
		}
		if err := q.db.UpdateBroadcastRecipient(ctx, broadcastID, r.StudentID, status, errText); err != nil {
			q.logger.Warn("Failed to update broadcast recipient",
				zap.Int64("broadcast_id", broadcastID),
				zap.Int64("student_id", r.StudentID),
				zap.Error(err),
			)
		}
	}

	final := "completed"
	if sent == 0 && len(recipients) > 0 {
		final = "failed"
	}
	if err := q.db.UpdateBroadcastStatus(ctx, broadcastID, final, sent); err != nil {
		return fmt.Errorf("mark %s: %w", final, err)
	}

	q.logger.Info("Mentor broadcast delivered",
		zap.Int64("broadcast_id", broadcastID),
		zap.Int64("mentor_id", mentorID),
		zap.Int("sent", sent),
		zap.Int("recipients", len(recipients)),
	)
	return nil
}

func (q *MentorQueue) send(chatID int64, text string) error {
	if q.sender == nil {
		return nil // For testing
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := q.sender.Send(msg)
	return err
}
