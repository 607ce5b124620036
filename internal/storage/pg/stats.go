package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"mainbot/internal/cache"
	"mainbot/internal/models"
	"mainbot/internal/storage"
)

// GetWorkerStats aggregates the worker's profit history (cached short)
func (db *PostgresDB) GetWorkerStats(ctx context.Context, workerID int64) (*models.WorkerStats, error) {
	key := fmt.Sprintf("stats:%d", workerID)
	if db.cache != nil {
		if cached, ok := db.cache.Get(key).(*models.WorkerStats); ok {
			cp := *cached
			return &cp, nil
		}
	}

	var (
		s                        models.WorkerStats
		totalStr, avgStr, maxStr string
		monthStr, weekStr        string
	)
	err := db.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(net_profit), 0)::text,
			COALESCE(AVG(net_profit), 0)::text,
			COALESCE(MAX(net_profit), 0)::text,
			COALESCE(SUM(net_profit) FILTER (WHERE created_at >= date_trunc('month', now())), 0)::text,
			COALESCE(SUM(net_profit) FILTER (WHERE created_at >= date_trunc('week', now())), 0)::text
		FROM profits WHERE worker_id = $1`, workerID).
		Scan(&s.TotalCount, &totalStr, &avgStr, &maxStr, &monthStr, &weekStr)
	if err != nil {
		return nil, fmt.Errorf("failed to get worker stats: %w", err)
	}

	for _, p := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&s.TotalProfit, totalStr},
		{&s.AvgProfit, avgStr},
		{&s.MaxProfit, maxStr},
		{&s.MonthProfit, monthStr},
		{&s.WeekProfit, weekStr},
	} {
		if *p.dst, err = decimal.NewFromString(p.src); err != nil {
			return nil, fmt.Errorf("parse stats value: %w", err)
		}
	}

	if db.cache != nil {
		cp := s
		db.cache.Set(key, &cp, cache.TTLShort)
	}
	return &s, nil
}

// TopWorkers returns the leaderboard for a period: "all", "month" or
// "week". Only active workers appear (cached short).
func (db *PostgresDB) TopWorkers(ctx context.Context, period string, limit int) ([]models.TopWorker, error) {
	key := fmt.Sprintf("top:%s:%d", period, limit)
	if db.cache != nil {
		if cached, ok := db.cache.Get(key).([]models.TopWorker); ok {
			return cached, nil
		}
	}

	var since string
	switch period {
	case "month":
		since = `AND p.created_at >= date_trunc('month', now())`
	case "week":
		since = `AND p.created_at >= date_trunc('week', now())`
	case "all", "":
		since = ``
	default:
		return nil, fmt.Errorf("unknown leaderboard period %q", period)
	}

	rows, err := db.pool.Query(ctx, `
		SELECT w.id, w.username, w.full_name, SUM(p.net_profit)::text, COUNT(*)
		FROM profits p
		JOIN workers w ON w.id = p.worker_id
		WHERE w.status = 'active' `+since+`
		GROUP BY w.id, w.username, w.full_name
		ORDER BY SUM(p.net_profit) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var top []models.TopWorker
	for rows.Next() {
		var (
			t        models.TopWorker
			totalStr string
		)
		if err := rows.Scan(&t.UserID, &t.Username, &t.FullName, &totalStr, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		if t.Total, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("parse leaderboard total: %w", err)
		}
		top = append(top, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if db.cache != nil {
		db.cache.Set(key, top, cache.TTLShort)
	}
	return top, nil
}

// LogRankChange appends a rank crossing to the audit trail
func (db *PostgresDB) LogRankChange(ctx context.Context, change models.RankChange) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO rank_changes (worker_id, old_rank, new_rank, old_level, new_level, total_profit)
		VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
		change.WorkerID, change.OldRank, change.NewRank,
		change.OldLevel, change.NewLevel, change.TotalProfit.String())
	if err != nil {
		return fmt.Errorf("failed to log rank change: %w", err)
	}
	return nil
}

// LogAdminAction appends an operator action to the audit trail
func (db *PostgresDB) LogAdminAction(ctx context.Context, action models.AdminAction) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO admin_actions (admin_id, admin_username, action_type, details, target_user_id)
		VALUES ($1, $2, $3, $4, $5)`,
		action.AdminID, action.AdminUsername, action.ActionType, action.Details, action.TargetUserID)
	if err != nil {
		return fmt.Errorf("failed to log admin action: %w", err)
	}
	return nil
}

// CreateNotification stores a message for a worker
func (db *PostgresDB) CreateNotification(ctx context.Context, n models.Notification) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx, `
		INSERT INTO notifications (worker_id, type, title, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		n.WorkerID, n.Type, n.Title, n.Message).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create notification: %w", err)
	}
	return id, nil
}

// CreateMentorBroadcast queues a mentor message with its recipient set
// in one transaction.
func (db *PostgresDB) CreateMentorBroadcast(ctx context.Context, mentorID int64, text string, studentIDs []int64) (int64, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin broadcast tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO mentor_broadcasts (mentor_id, message_text, status)
		VALUES ($1, $2, 'pending')
		RETURNING id`, mentorID, text).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create mentor broadcast: %w", err)
	}

	for _, studentID := range studentIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO mentor_broadcast_recipients (broadcast_id, student_id, status)
			VALUES ($1, $2, 'pending')`, id, studentID)
		if err != nil {
			return 0, fmt.Errorf("failed to add broadcast recipient: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit broadcast: %w", err)
	}
	return id, nil
}

// PendingMentorBroadcasts returns queued broadcasts, oldest first
func (db *PostgresDB) PendingMentorBroadcasts(ctx context.Context) ([]models.MentorBroadcast, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, mentor_id, message_text, status, sent_count, created_at
		FROM mentor_broadcasts WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending broadcasts: %w", err)
	}
	defer rows.Close()

	var broadcasts []models.MentorBroadcast
	for rows.Next() {
		var b models.MentorBroadcast
		if err := rows.Scan(&b.ID, &b.MentorID, &b.MessageText, &b.Status, &b.SentCount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		broadcasts = append(broadcasts, b)
	}
	return broadcasts, rows.Err()
}

// BroadcastRecipients returns the delivery rows for a broadcast
func (db *PostgresDB) BroadcastRecipients(ctx context.Context, broadcastID int64) ([]models.BroadcastRecipient, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT broadcast_id, student_id, status, COALESCE(error_text, '')
		FROM mentor_broadcast_recipients WHERE broadcast_id = $1 ORDER BY student_id`, broadcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcast recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.BroadcastRecipient
	for rows.Next() {
		var r models.BroadcastRecipient
		if err := rows.Scan(&r.BroadcastID, &r.StudentID, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan broadcast recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

// UpdateBroadcastRecipient records one recipient's delivery outcome
func (db *PostgresDB) UpdateBroadcastRecipient(ctx context.Context, broadcastID, studentID int64, status, errText string) error {
	tag, err := db.pool.Exec(ctx, `
		UPDATE mentor_broadcast_recipients SET status = $1, error_text = NULLIF($2, '')
		WHERE broadcast_id = $3 AND student_id = $4`,
		status, errText, broadcastID, studentID)
	if err != nil {
		return fmt.Errorf("failed to update broadcast recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateBroadcastStatus advances a broadcast through its lifecycle
func (db *PostgresDB) UpdateBroadcastStatus(ctx context.Context, broadcastID int64, status string, sentCount int) error {
	tag, err := db.pool.Exec(ctx, `
		UPDATE mentor_broadcasts SET status = $1, sent_count = $2 WHERE id = $3`,
		status, sentCount, broadcastID)
	if err != nil {
		return fmt.Errorf("failed to update broadcast status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetSetting reads a key from bot_settings
func (db *PostgresDB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.pool.QueryRow(ctx,
		`SELECT value FROM bot_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a key in bot_settings
func (db *PostgresDB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO bot_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}
