package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"mainbot/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Storage defines the interface for data storage operations
type Storage interface {
	// Worker operations
	CreateWorker(ctx context.Context, w models.Worker) error
	GetWorker(ctx context.Context, id int64) (*models.Worker, error)
	GetWorkerByUsername(ctx context.Context, username string) (*models.Worker, error)
	UpdateWorkerStatus(ctx context.Context, id int64, status models.WorkerStatus) error
	UpdateWorkerWallet(ctx context.Context, id int64, wallet string) error
	ListWorkersByStatus(ctx context.Context, status models.WorkerStatus) ([]models.Worker, error)
	ActiveWorkerIDs(ctx context.Context) ([]int64, error)
	CountReferrals(ctx context.Context, referrerID int64) (int, error)

	// AddToWorkerTotal atomically increments the worker's cumulative
	// profit total. No other method may mutate the total.
	AddToWorkerTotal(ctx context.Context, id int64, delta decimal.Decimal) error
	// AddReferralEarnings increments the separate referral earnings
	// counter, which does not affect ranking.
	AddReferralEarnings(ctx context.Context, id int64, delta decimal.Decimal) error

	// Service operations. Services are never hard-deleted, only
	// deactivated.
	CreateService(ctx context.Context, s models.Service) (int64, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	DeactivateService(ctx context.Context, id int64) error

	// Profit ledger
	CreateProfit(ctx context.Context, workerID int64, amount, netProfit decimal.Decimal, serviceName string) (int64, error)
	GetProfit(ctx context.Context, id int64) (*models.ProfitRecord, error)
	ListWorkerProfits(ctx context.Context, workerID int64, limit int) ([]models.ProfitRecord, error)
	MarkProfitsPaid(ctx context.Context, workerID int64) (int, error)
	UnpaidProfitSummary(ctx context.Context) ([]models.UnpaidEntry, error)

	// Referral ledger
	CreateReferralShare(ctx context.Context, referrerID, referralID, profitID int64, amount decimal.Decimal) (int64, error)
	MarkReferralSharesPaid(ctx context.Context, referrerID int64) (int, error)
	UnpaidReferralSummary(ctx context.Context) ([]models.UnpaidEntry, error)

	// Mentor ledger
	CreateMentorShare(ctx context.Context, mentorID, mentorUserID, studentID, profitID int64, amount decimal.Decimal, percent int) (int64, error)
	MarkMentorSharesPaid(ctx context.Context, mentorUserID int64) (int, error)
	UnpaidMentorSummary(ctx context.Context) ([]models.UnpaidEntry, error)

	// Mentor operations
	CreateMentor(ctx context.Context, userID int64, serviceName string, percent int) (int64, error)
	GetMentor(ctx context.Context, id int64) (*models.Mentor, error)
	ListMentors(ctx context.Context) ([]models.Mentor, error)
	// GetWorkerMentor returns the active mentor assigned to the
	// worker, or ErrNotFound when none is assigned.
	GetWorkerMentor(ctx context.Context, workerID int64) (*models.Mentor, error)
	AssignMentor(ctx context.Context, workerID, mentorID int64) error
	RemoveMentor(ctx context.Context, workerID int64) error
	AddMentorEarnings(ctx context.Context, mentorID int64, delta decimal.Decimal) error

	// Statistics operations
	GetWorkerStats(ctx context.Context, workerID int64) (*models.WorkerStats, error)

	// TopWorkers returns the leaderboard for a period: "all",
	// "month" or "week".
	TopWorkers(ctx context.Context, period string, limit int) ([]models.TopWorker, error)

	// Audit trail
	LogRankChange(ctx context.Context, change models.RankChange) error
	LogAdminAction(ctx context.Context, action models.AdminAction) error
	CreateNotification(ctx context.Context, n models.Notification) (int64, error)

	// Mentor broadcast queue
	CreateMentorBroadcast(ctx context.Context, mentorID int64, text string, studentIDs []int64) (int64, error)
	PendingMentorBroadcasts(ctx context.Context) ([]models.MentorBroadcast, error)
	BroadcastRecipients(ctx context.Context, broadcastID int64) ([]models.BroadcastRecipient, error)
	UpdateBroadcastRecipient(ctx context.Context, broadcastID, studentID int64, status, errText string) error
	UpdateBroadcastStatus(ctx context.Context, broadcastID int64, status string, sentCount int) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
