package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"mainbot/internal/models"
	"mainbot/internal/storage"
)

// CreateProfit inserts a profit record in hold status
func (db *PostgresDB) CreateProfit(ctx context.Context, workerID int64, amount, netProfit decimal.Decimal, serviceName string) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx, `
		INSERT INTO profits (worker_id, amount, net_profit, service_name, status)
		VALUES ($1, $2::numeric, $3::numeric, $4, 'hold')
		RETURNING id`,
		workerID, amount.String(), netProfit.String(), serviceName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create profit: %w", err)
	}
	db.invalidateWorker(workerID)
	return id, nil
}

// GetProfit returns a single profit record by id
func (db *PostgresDB) GetProfit(ctx context.Context, id int64) (*models.ProfitRecord, error) {
	row := db.pool.QueryRow(ctx, `
		SELECT id, worker_id, amount::text, net_profit::text, service_name, status, created_at, paid_at
		FROM profits WHERE id = $1`, id)
	p, err := scanProfit(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get profit %d: %w", id, err)
	}
	return p, nil
}

// ListWorkerProfits returns the worker's profit history, newest first
func (db *PostgresDB) ListWorkerProfits(ctx context.Context, workerID int64, limit int) ([]models.ProfitRecord, error) {
	query := `
		SELECT id, worker_id, amount::text, net_profit::text, service_name, status, created_at, paid_at
		FROM profits WHERE worker_id = $1 ORDER BY created_at DESC`
	args := []interface{}{workerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profits: %w", err)
	}
	defer rows.Close()

	var profits []models.ProfitRecord
	for rows.Next() {
		p, err := scanProfit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profit: %w", err)
		}
		profits = append(profits, *p)
	}
	return profits, rows.Err()
}

// MarkProfitsPaid transitions all of the worker's hold profits to paid
func (db *PostgresDB) MarkProfitsPaid(ctx context.Context, workerID int64) (int, error) {
	tag, err := db.pool.Exec(ctx, `
		UPDATE profits SET status = 'paid', paid_at = now()
		WHERE worker_id = $1 AND status = 'hold'`, workerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark profits paid: %w", err)
	}
	db.invalidateWorker(workerID)
	return int(tag.RowsAffected()), nil
}

// UnpaidProfitSummary groups pending worker payouts by worker
func (db *PostgresDB) UnpaidProfitSummary(ctx context.Context) ([]models.UnpaidEntry, error) {
	return db.unpaidSummary(ctx, `
		SELECT p.worker_id, w.username, w.full_name, COUNT(*), SUM(p.net_profit)::text
		FROM profits p
		JOIN workers w ON w.id = p.worker_id
		WHERE p.status = 'hold'
		GROUP BY p.worker_id, w.username, w.full_name
		ORDER BY p.worker_id`)
}

// CreateReferralShare inserts the referrer's cut for a profit record
func (db *PostgresDB) CreateReferralShare(ctx context.Context, referrerID, referralID, profitID int64, amount decimal.Decimal) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx, `
		INSERT INTO referral_profits (referrer_id, referral_id, profit_id, amount, status)
		VALUES ($1, $2, $3, $4::numeric, 'hold')
		RETURNING id`,
		referrerID, referralID, profitID, amount.String()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create referral share: %w", err)
	}
	return id, nil
}

// MarkReferralSharesPaid settles the referrer's pending shares
func (db *PostgresDB) MarkReferralSharesPaid(ctx context.Context, referrerID int64) (int, error) {
	tag, err := db.pool.Exec(ctx, `
		UPDATE referral_profits SET status = 'paid', paid_at = now()
		WHERE referrer_id = $1 AND status = 'hold'`, referrerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark referral shares paid: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// UnpaidReferralSummary groups pending referral payouts by referrer
func (db *PostgresDB) UnpaidReferralSummary(ctx context.Context) ([]models.UnpaidEntry, error) {
	return db.unpaidSummary(ctx, `
		SELECT r.referrer_id, w.username, w.full_name, COUNT(*), SUM(r.amount)::text
		FROM referral_profits r
		JOIN workers w ON w.id = r.referrer_id
		WHERE r.status = 'hold'
		GROUP BY r.referrer_id, w.username, w.full_name
		ORDER BY r.referrer_id`)
}

// CreateMentorShare inserts the mentor's cut with a percent snapshot
func (db *PostgresDB) CreateMentorShare(ctx context.Context, mentorID, mentorUserID, studentID, profitID int64, amount decimal.Decimal, percent int) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx, `
		INSERT INTO mentor_profits (mentor_id, mentor_user_id, student_id, profit_id, amount, percent, status)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, 'hold')
		RETURNING id`,
		mentorID, mentorUserID, studentID, profitID, amount.String(), percent).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create mentor share: %w", err)
	}
	return id, nil
}

// MarkMentorSharesPaid settles the mentor's pending shares. The key is
// the mentor's own Telegram user id, matching how payouts are made.
func (db *PostgresDB) MarkMentorSharesPaid(ctx context.Context, mentorUserID int64) (int, error) {
	tag, err := db.pool.Exec(ctx, `
		UPDATE mentor_profits SET status = 'paid', paid_at = now()
		WHERE mentor_user_id = $1 AND status = 'hold'`, mentorUserID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark mentor shares paid: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// UnpaidMentorSummary groups pending mentor payouts by mentor user
func (db *PostgresDB) UnpaidMentorSummary(ctx context.Context) ([]models.UnpaidEntry, error) {
	return db.unpaidSummary(ctx, `
		SELECT m.mentor_user_id, w.username, w.full_name, COUNT(*), SUM(m.amount)::text
		FROM mentor_profits m
		JOIN workers w ON w.id = m.mentor_user_id
		WHERE m.status = 'hold'
		GROUP BY m.mentor_user_id, w.username, w.full_name
		ORDER BY m.mentor_user_id`)
}

func (db *PostgresDB) unpaidSummary(ctx context.Context, query string) ([]models.UnpaidEntry, error) {
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpaid summary: %w", err)
	}
	defer rows.Close()

	var entries []models.UnpaidEntry
	for rows.Next() {
		var (
			e        models.UnpaidEntry
			totalStr string
		)
		if err := rows.Scan(&e.UserID, &e.Username, &e.FullName, &e.Count, &totalStr); err != nil {
			return nil, fmt.Errorf("failed to scan unpaid entry: %w", err)
		}
		if e.Total, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("parse unpaid total: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanProfit(row pgx.Row) (*models.ProfitRecord, error) {
	var (
		p                 models.ProfitRecord
		amountStr, netStr string
	)
	err := row.Scan(&p.ID, &p.WorkerID, &amountStr, &netStr, &p.ServiceName, &p.Status, &p.CreatedAt, &p.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if p.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if p.NetProfit, err = decimal.NewFromString(netStr); err != nil {
		return nil, fmt.Errorf("parse net_profit: %w", err)
	}
	return &p, nil
}
