package stubs

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"mainbot/internal/models"
	"mainbot/internal/storage"
)

func TestMockDB_WorkerLookup(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	if _, err := db.GetWorker(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := db.CreateWorker(ctx, models.Worker{ID: 1, Username: "Alice", Status: models.StatusActive}); err != nil {
		t.Fatalf("Failed to create worker: %v", err)
	}

	// Username lookup is case-insensitive
	w, err := db.GetWorkerByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to find worker by username: %v", err)
	}
	if w.ID != 1 {
		t.Errorf("Expected worker 1, got %d", w.ID)
	}
}

func TestMockDB_ReturnsCopies(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	_ = db.CreateWorker(ctx, models.Worker{ID: 1, Username: "alice", Status: models.StatusActive})

	w, _ := db.GetWorker(ctx, 1)
	w.Username = "mutated"

	again, _ := db.GetWorker(ctx, 1)
	if again.Username != "alice" {
		t.Errorf("Mutating a returned worker leaked into the store: %s", again.Username)
	}
}

func TestMockDB_ListWorkersByStatus(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	_ = db.CreateWorker(ctx, models.Worker{ID: 3, Status: models.StatusActive})
	_ = db.CreateWorker(ctx, models.Worker{ID: 1, Status: models.StatusActive})
	_ = db.CreateWorker(ctx, models.Worker{ID: 2, Status: models.StatusPending})

	active, err := db.ListWorkersByStatus(ctx, models.StatusActive)
	if err != nil {
		t.Fatalf("Failed to list workers: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("Expected 2 active workers, got %d", len(active))
	}
	// Sorted by id
	if active[0].ID != 1 || active[1].ID != 3 {
		t.Errorf("Expected workers sorted by id, got %d, %d", active[0].ID, active[1].ID)
	}
}

func TestMockDB_CountReferrals(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	referrer := int64(1)
	_ = db.CreateWorker(ctx, models.Worker{ID: 1, Status: models.StatusActive})
	_ = db.CreateWorker(ctx, models.Worker{ID: 2, Status: models.StatusActive, ReferrerID: &referrer})
	_ = db.CreateWorker(ctx, models.Worker{ID: 3, Status: models.StatusActive, ReferrerID: &referrer})

	count, err := db.CountReferrals(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to count referrals: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 referrals, got %d", count)
	}
}

func TestMockDB_ProfitSettlement(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	_ = db.CreateWorker(ctx, models.Worker{ID: 1, Username: "alice", Status: models.StatusActive})

	id, err := db.CreateProfit(ctx, 1, decimal.NewFromInt(1000), decimal.NewFromInt(500), "Сервис")
	if err != nil {
		t.Fatalf("Failed to create profit: %v", err)
	}
	_, _ = db.CreateProfit(ctx, 1, decimal.NewFromInt(200), decimal.NewFromInt(100), "Сервис")

	summary, err := db.UnpaidProfitSummary(ctx)
	if err != nil {
		t.Fatalf("Failed to get summary: %v", err)
	}
	if len(summary) != 1 || summary[0].Count != 2 {
		t.Fatalf("Expected one entry with 2 records, got %+v", summary)
	}
	if summary[0].Total.StringFixed(2) != "600.00" {
		t.Errorf("Expected total 600.00, got %s", summary[0].Total.StringFixed(2))
	}

	count, err := db.MarkProfitsPaid(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to mark paid: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 settled records, got %d", count)
	}

	p, _ := db.GetProfit(ctx, id)
	if p.Status != models.StatusPaid || p.PaidAt == nil {
		t.Errorf("Expected paid record with timestamp, got %+v", p)
	}

	// Second settlement finds nothing
	count, _ = db.MarkProfitsPaid(ctx, 1)
	if count != 0 {
		t.Errorf("Expected repeat settlement to touch 0 records, got %d", count)
	}
}

func TestMockDB_FailureInjection(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	boom := errors.New("boom")
	db.FailCreateProfit = boom

	if _, err := db.CreateProfit(ctx, 1, decimal.NewFromInt(10), decimal.NewFromInt(5), "Сервис"); !errors.Is(err, boom) {
		t.Errorf("Expected injected error, got %v", err)
	}
}

func TestMockDB_MentorAssignment(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	_ = db.CreateWorker(ctx, models.Worker{ID: 1, Status: models.StatusActive})
	_ = db.CreateWorker(ctx, models.Worker{ID: 2, Username: "mentor", Status: models.StatusActive})

	mentorID, err := db.CreateMentor(ctx, 2, "Сервис", 20)
	if err != nil {
		t.Fatalf("Failed to create mentor: %v", err)
	}

	if err := db.AssignMentor(ctx, 1, mentorID); err != nil {
		t.Fatalf("Failed to assign mentor: %v", err)
	}

	mt, err := db.GetWorkerMentor(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get worker mentor: %v", err)
	}
	if mt.Username != "mentor" || mt.Percent != 20 {
		t.Errorf("Unexpected mentor: %+v", mt)
	}

	if err := db.RemoveMentor(ctx, 1); err != nil {
		t.Fatalf("Failed to remove mentor: %v", err)
	}
	if _, err := db.GetWorkerMentor(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after removal, got %v", err)
	}

	// Assigning a nonexistent mentor fails
	if err := db.AssignMentor(ctx, 1, 999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for bad mentor id, got %v", err)
	}
}

func TestMockDB_TopWorkersOrder(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	_ = db.CreateWorker(ctx, models.Worker{ID: 1, Username: "low", Status: models.StatusActive})
	_ = db.CreateWorker(ctx, models.Worker{ID: 2, Username: "high", Status: models.StatusActive})

	_, _ = db.CreateProfit(ctx, 1, decimal.NewFromInt(100), decimal.NewFromInt(100), "Сервис")
	_, _ = db.CreateProfit(ctx, 2, decimal.NewFromInt(300), decimal.NewFromInt(300), "Сервис")

	top, err := db.TopWorkers(ctx, "all", 10)
	if err != nil {
		t.Fatalf("Failed to get top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != 2 {
		t.Errorf("Expected worker 2 first, got %+v", top)
	}
}

func TestMockDB_BroadcastQueue(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	mentorID, _ := db.CreateMentor(ctx, 2, "Сервис", 20)
	id, err := db.CreateMentorBroadcast(ctx, mentorID, "текст", []int64{10, 11})
	if err != nil {
		t.Fatalf("Failed to queue broadcast: %v", err)
	}

	pending, _ := db.PendingMentorBroadcasts(ctx)
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending broadcast, got %d", len(pending))
	}

	recipients, _ := db.BroadcastRecipients(ctx, id)
	if len(recipients) != 2 {
		t.Fatalf("Expected 2 recipients, got %d", len(recipients))
	}

	if err := db.UpdateBroadcastStatus(ctx, id, "completed", 2); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	pending, _ = db.PendingMentorBroadcasts(ctx)
	if len(pending) != 0 {
		t.Errorf("Expected empty queue, got %d", len(pending))
	}
}
