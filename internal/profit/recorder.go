package profit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mainbot/internal/cache"
	"mainbot/internal/models"
	"mainbot/internal/ranks"
	"mainbot/internal/storage"
)

// Ledger selects which distribution ledger a settlement targets
type Ledger string

const (
	LedgerWorker   Ledger = "worker"
	LedgerReferral Ledger = "referral"
	LedgerMentor   Ledger = "mentor"
)

// Validation errors reported back to the operator
var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidPercent  = errors.New("percent must be between 0 and 100")
	ErrWorkerNotActive = errors.New("worker is not active")
	ErrUnknownLedger   = errors.New("unknown ledger")
)

// Recorder persists profit events and the derived referral and mentor
// shares, keeping the worker's cumulative total consistent. It is the
// only writer of that total.
type Recorder struct {
	db              storage.Storage
	cache           *cache.Cache
	logger          *zap.Logger
	referralPercent int

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewRecorder creates a Recorder. cache may be nil when no read-through
// cache is in use (tests).
func NewRecorder(db storage.Storage, c *cache.Cache, logger *zap.Logger, referralPercent int) *Recorder {
	return &Recorder{
		db:              db,
		cache:           c,
		logger:          logger,
		referralPercent: referralPercent,
		locks:           make(map[int64]*sync.Mutex),
	}
}

// workerLock returns the per-worker mutex that serializes the
// read-modify-write of the cumulative total.
func (r *Recorder) workerLock(workerID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[workerID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[workerID] = l
	}
	return l
}

// Result describes a recorded (or previewed) profit distribution
type Result struct {
	ProfitID int64
	Split    Split
	Rank     ranks.Info
	OldTotal decimal.Decimal
	NewTotal decimal.Decimal
	RankUp   *ranks.Tier
	Referrer *models.Worker
	Mentor   *models.Mentor
}

// resolve loads the worker, their rank, referrer and mentor, and
// computes the split. Shared between Preview and RecordProfit.
func (r *Recorder) resolve(ctx context.Context, workerID int64, gross decimal.Decimal, workerPercent int, serviceName string) (*models.Worker, *Result, error) {
	if !gross.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}
	if workerPercent < 0 || workerPercent > 100 {
		return nil, nil, ErrInvalidPercent
	}

	worker, err := r.db.GetWorker(ctx, workerID)
	if err != nil {
		return nil, nil, fmt.Errorf("get worker %d: %w", workerID, err)
	}
	if worker.Status != models.StatusActive {
		return nil, nil, ErrWorkerNotActive
	}

	res := &Result{
		OldTotal: worker.TotalProfit,
		Rank:     ranks.For(worker.TotalProfit),
	}

	if worker.ReferrerID != nil {
		referrer, err := r.db.GetWorker(ctx, *worker.ReferrerID)
		if err != nil {
			// A vanished referrer disables the cut, it does not block
			// the profit
			r.logger.Warn("Referrer lookup failed",
				zap.Int64("worker_id", workerID),
				zap.Int64("referrer_id", *worker.ReferrerID),
				zap.Error(err),
			)
		} else {
			res.Referrer = referrer
		}
	}

	mentor, err := r.db.GetWorkerMentor(ctx, workerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("get mentor for worker %d: %w", workerID, err)
	}
	res.Mentor = mentor

	var terms *MentorTerms
	if mentor != nil {
		terms = &MentorTerms{
			MentorID:     mentor.ID,
			MentorUserID: mentor.UserID,
			Username:     mentor.Username,
			ServiceName:  mentor.ServiceName,
			Percent:      mentor.Percent,
		}
	}

	res.Split = ComputeSplit(gross, workerPercent, res.Rank.Bonus,
		res.Referrer != nil, r.referralPercent, terms, serviceName)
	res.NewTotal = res.OldTotal.Add(res.Split.WorkerNet.Round(2))
	res.RankUp = ranks.CheckRankUp(res.OldTotal, res.NewTotal)

	return worker, res, nil
}

// Preview computes the distribution without writing anything. Used by
// the confirmation step of the operator wizard.
func (r *Recorder) Preview(ctx context.Context, workerID int64, gross decimal.Decimal, workerPercent int, serviceName string) (*Result, error) {
	_, res, err := r.resolve(ctx, workerID, gross, workerPercent, serviceName)
	return res, err
}

// RecordProfit persists the profit record, the derived shares and the
// updated cumulative total. Writes are serialized per worker id.
//
// If the profit insert itself fails nothing is persisted. If a later
// step fails the profit record stands: the error is returned so the
// operator can reconcile manually, and the Result still carries the
// profit id.
func (r *Recorder) RecordProfit(ctx context.Context, workerID int64, gross decimal.Decimal, workerPercent int, serviceName string) (*Result, error) {
	lock := r.workerLock(workerID)
	lock.Lock()
	defer lock.Unlock()

	_, res, err := r.resolve(ctx, workerID, gross, workerPercent, serviceName)
	if err != nil {
		return nil, err
	}

	profitID, err := r.db.CreateProfit(ctx, workerID, gross.Round(2), res.Split.WorkerNet.Round(2), serviceName)
	if err != nil {
		return nil, fmt.Errorf("create profit: %w", err)
	}
	res.ProfitID = profitID

	if err := r.recordSideEffects(ctx, workerID, res); err != nil {
		r.logger.Error("Profit recorded with incomplete sub-ledger, manual reconciliation required",
			zap.Int64("profit_id", profitID),
			zap.Int64("worker_id", workerID),
			zap.Error(err),
		)
		return res, fmt.Errorf("profit %d recorded with incomplete sub-ledger: %w", profitID, err)
	}

	r.invalidateWorker(workerID)
	if res.Referrer != nil {
		r.invalidateWorker(res.Referrer.ID)
	}

	r.logger.Info("Profit recorded",
		zap.Int64("profit_id", profitID),
		zap.Int64("worker_id", workerID),
		zap.String("service", serviceName),
		zap.String("gross", gross.StringFixed(2)),
		zap.String("net", res.Split.WorkerNet.StringFixed(2)),
	)
	return res, nil
}

// recordSideEffects runs steps 6-9 of the distribution: sub-ledger
// rows, earnings counters, cumulative total and rank log.
func (r *Recorder) recordSideEffects(ctx context.Context, workerID int64, res *Result) error {
	if res.Referrer != nil && res.Split.ReferralCut.IsPositive() {
		cut := res.Split.ReferralCut.Round(2)
		if _, err := r.db.CreateReferralShare(ctx, res.Referrer.ID, workerID, res.ProfitID, cut); err != nil {
			return fmt.Errorf("create referral share: %w", err)
		}
		if err := r.db.AddReferralEarnings(ctx, res.Referrer.ID, cut); err != nil {
			return fmt.Errorf("add referral earnings: %w", err)
		}
	}

	if res.Mentor != nil && res.Split.MentorCut.IsPositive() {
		cut := res.Split.MentorCut.Round(2)
		if _, err := r.db.CreateMentorShare(ctx, res.Mentor.ID, res.Mentor.UserID, workerID, res.ProfitID, cut, res.Mentor.Percent); err != nil {
			return fmt.Errorf("create mentor share: %w", err)
		}
		if err := r.db.AddMentorEarnings(ctx, res.Mentor.ID, cut); err != nil {
			return fmt.Errorf("add mentor earnings: %w", err)
		}
	}

	if err := r.db.AddToWorkerTotal(ctx, workerID, res.Split.WorkerNet.Round(2)); err != nil {
		return fmt.Errorf("update worker total: %w", err)
	}

	if res.RankUp != nil {
		change := models.RankChange{
			WorkerID:    workerID,
			OldRank:     res.Rank.Name,
			NewRank:     res.RankUp.Name,
			OldLevel:    res.Rank.Level,
			NewLevel:    res.RankUp.Level,
			TotalProfit: res.NewTotal,
		}
		if err := r.db.LogRankChange(ctx, change); err != nil {
			return fmt.Errorf("log rank change: %w", err)
		}
		n := models.Notification{
			WorkerID: workerID,
			Type:     "rank_up",
			Title:    fmt.Sprintf("🎉 %s %s!", res.RankUp.Emoji, res.RankUp.Name),
			Message:  ranks.RewardMessage(*res.RankUp),
		}
		if _, err := r.db.CreateNotification(ctx, n); err != nil {
			return fmt.Errorf("create rank notification: %w", err)
		}
	}

	return nil
}

// SettlePayouts bulk-transitions the beneficiary's hold records in the
// given ledger to paid. Returns the number of records settled; calling
// again with no new activity returns 0.
func (r *Recorder) SettlePayouts(ctx context.Context, beneficiaryID int64, ledger Ledger) (int, error) {
	var (
		count int
		err   error
	)
	switch ledger {
	case LedgerWorker:
		count, err = r.db.MarkProfitsPaid(ctx, beneficiaryID)
	case LedgerReferral:
		count, err = r.db.MarkReferralSharesPaid(ctx, beneficiaryID)
	case LedgerMentor:
		count, err = r.db.MarkMentorSharesPaid(ctx, beneficiaryID)
	default:
		return 0, ErrUnknownLedger
	}
	if err != nil {
		return 0, fmt.Errorf("settle %s payouts for %d: %w", ledger, beneficiaryID, err)
	}

	r.invalidateWorker(beneficiaryID)
	r.logger.Info("Payouts settled",
		zap.String("ledger", string(ledger)),
		zap.Int64("beneficiary_id", beneficiaryID),
		zap.Int("count", count),
	)
	return count, nil
}

// UnpaidSummary returns the pending balances grouped by beneficiary
// for the given ledger.
func (r *Recorder) UnpaidSummary(ctx context.Context, ledger Ledger) ([]models.UnpaidEntry, error) {
	switch ledger {
	case LedgerWorker:
		return r.db.UnpaidProfitSummary(ctx)
	case LedgerReferral:
		return r.db.UnpaidReferralSummary(ctx)
	case LedgerMentor:
		return r.db.UnpaidMentorSummary(ctx)
	default:
		return nil, ErrUnknownLedger
	}
}

func (r *Recorder) invalidateWorker(workerID int64) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(fmt.Sprintf("worker:%d", workerID))
	r.cache.InvalidatePrefix(fmt.Sprintf("stats:%d", workerID))
	r.cache.InvalidatePrefix("top:")
}
