package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mainbot/internal/models"
	"mainbot/internal/storage/stubs"
)

func newTestQueue(db *stubs.MockDB, sender MessageSender) *MentorQueue {
	return &MentorQueue{
		db:       db,
		sender:   sender,
		logger:   zap.NewNop(),
		interval: time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func seedMentorBroadcast(t *testing.T, db *stubs.MockDB, students []int64) int64 {
	t.Helper()
	ctx := context.Background()

	mentorID, err := db.CreateMentor(ctx, 500, "Сервис А", 20)
	if err != nil {
		t.Fatalf("Failed to create mentor: %v", err)
	}
	id, err := db.CreateMentorBroadcast(ctx, mentorID, "Встреча в 19:00", students)
	if err != nil {
		t.Fatalf("Failed to queue broadcast: %v", err)
	}
	return id
}

func TestMentorQueue_DrainCompletes(t *testing.T) {
	db := stubs.NewMockDB()
	sender := newScriptedSender()
	q := newTestQueue(db, sender)
	ctx := context.Background()

	id := seedMentorBroadcast(t, db, []int64{11, 12, 13})

	if err := q.drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	pending, _ := db.PendingMentorBroadcasts(ctx)
	if len(pending) != 0 {
		t.Errorf("Expected no pending broadcasts, got %d", len(pending))
	}

	recipients, _ := db.BroadcastRecipients(ctx, id)
	for _, r := range recipients {
		if r.Status != "sent" {
			t.Errorf("Expected recipient %d sent, got %s", r.StudentID, r.Status)
		}
	}
	if len(sender.sent) != 3 {
		t.Errorf("Expected 3 deliveries, got %d", len(sender.sent))
	}
}

func TestMentorQueue_PartialFailureRecorded(t *testing.T) {
	db := stubs.NewMockDB()
	sender := newScriptedSender()
	sender.always[12] = &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	q := newTestQueue(db, sender)
	ctx := context.Background()

	id := seedMentorBroadcast(t, db, []int64{11, 12})

	if err := q.drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	recipients, _ := db.BroadcastRecipients(ctx, id)
	statuses := make(map[int64]models.BroadcastRecipient)
	for _, r := range recipients {
		statuses[r.StudentID] = r
	}
	if statuses[11].Status != "sent" {
		t.Errorf("Expected student 11 sent, got %s", statuses[11].Status)
	}
	if statuses[12].Status != "failed" || statuses[12].Error == "" {
		t.Errorf("Expected student 12 failed with error text, got %+v", statuses[12])
	}
}

func TestMentorQueue_AllFailedMarksBroadcastFailed(t *testing.T) {
	db := stubs.NewMockDB()
	sender := newScriptedSender()
	sender.always[11] = errors.New("network down")
	q := newTestQueue(db, sender)
	ctx := context.Background()

	seedMentorBroadcast(t, db, []int64{11})

	if err := q.drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	// The broadcast left the pending queue even though delivery failed
	pending, _ := db.PendingMentorBroadcasts(ctx)
	if len(pending) != 0 {
		t.Errorf("Expected failed broadcast to leave the queue, got %d pending", len(pending))
	}
}

func TestMentorQueue_StartStop(t *testing.T) {
	db := stubs.NewMockDB()
	q := newTestQueue(db, newScriptedSender())

	q.Start()
	time.Sleep(5 * time.Millisecond)
	q.Stop() // Must not hang
}
