package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkerStatus is the moderation state of a worker account.
type WorkerStatus string

const (
	StatusPending WorkerStatus = "pending"
	StatusActive  WorkerStatus = "active"
	StatusBanned  WorkerStatus = "banned"
)

// LedgerStatus is the payout state of a ledger record.
type LedgerStatus string

const (
	StatusHold LedgerStatus = "hold"
	StatusPaid LedgerStatus = "paid"
)

// Worker represents a team member who generates profit events
type Worker struct {
	ID               int64
	Username         string
	FullName         string
	Status           WorkerStatus
	TotalProfit      decimal.Decimal
	ReferralEarnings decimal.Decimal
	ReferrerID       *int64
	MentorID         *int64
	WalletAddress    string
	ExperienceText   string
	SourceText       string
	CreatedAt        time.Time
	LastActivity     time.Time
}

// Service represents a work category
type Service struct {
	ID          int64
	Name        string
	Icon        string
	Description string
	ManualLink  string
	BotLink     string
	IsActive    bool
}

// ProfitRecord is a single profit event credited to a worker.
// Amount is the gross value, NetProfit the amount credited to the
// worker's cumulative total. Immutable once created except for the
// hold→paid status transition.
type ProfitRecord struct {
	ID          int64
	WorkerID    int64
	Amount      decimal.Decimal
	NetProfit   decimal.Decimal
	ServiceName string
	Status      LedgerStatus
	CreatedAt   time.Time
	PaidAt      *time.Time
}

// ReferralShare is the referrer's cut derived from a profit record
type ReferralShare struct {
	ID         int64
	ReferrerID int64
	ReferralID int64
	ProfitID   int64
	Amount     decimal.Decimal
	Status     LedgerStatus
	CreatedAt  time.Time
	PaidAt     *time.Time
}

// MentorShare is the mentor's cut derived from a profit record.
// Percent is a snapshot of the mentor's commission at creation time.
type MentorShare struct {
	ID           int64
	MentorID     int64
	MentorUserID int64
	StudentID    int64
	ProfitID     int64
	Amount       decimal.Decimal
	Percent      int
	Status       LedgerStatus
	CreatedAt    time.Time
	PaidAt       *time.Time
}

// Mentor wraps a worker who takes a commission on student profits
type Mentor struct {
	ID          int64
	UserID      int64
	Username    string
	ServiceName string
	Percent     int
	TotalEarned decimal.Decimal
	IsActive    bool
}

// RankChange is an append-only record of a rank tier crossing
type RankChange struct {
	ID          int64
	WorkerID    int64
	OldRank     string
	NewRank     string
	OldLevel    int
	NewLevel    int
	TotalProfit decimal.Decimal
	CreatedAt   time.Time
}

// AdminAction is an audit log entry for operator actions
type AdminAction struct {
	ID            int64
	AdminID       int64
	AdminUsername string
	ActionType    string
	Details       string
	TargetUserID  *int64
	CreatedAt     time.Time
}

// Notification is a stored message for a worker
type Notification struct {
	ID        int64
	WorkerID  int64
	Type      string
	Title     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// WorkerStats aggregates a worker's profit history
type WorkerStats struct {
	TotalCount  int
	TotalProfit decimal.Decimal
	AvgProfit   decimal.Decimal
	MaxProfit   decimal.Decimal
	MonthProfit decimal.Decimal
	WeekProfit  decimal.Decimal
}

// UnpaidEntry is one beneficiary's pending balance within a ledger
type UnpaidEntry struct {
	UserID   int64
	Username string
	FullName string
	Count    int
	Total    decimal.Decimal
}

// TopWorker is one leaderboard row for a period
type TopWorker struct {
	UserID   int64
	Username string
	FullName string
	Total    decimal.Decimal
	Count    int
}

// MentorBroadcast is a queued mentor-to-students message
type MentorBroadcast struct {
	ID          int64
	MentorID    int64
	MessageText string
	Status      string
	SentCount   int
	CreatedAt   time.Time
}

// BroadcastRecipient tracks per-student delivery of a mentor broadcast
type BroadcastRecipient struct {
	BroadcastID int64
	StudentID   int64
	Status      string
	Error       string
}
