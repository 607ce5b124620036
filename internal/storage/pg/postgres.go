package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mainbot/internal/cache"
	"mainbot/internal/models"
	"mainbot/internal/storage"
)

// PostgresDB implements storage.Storage on top of a Supabase/Postgres
// database via pgx. Hot reads go through an injected TTL cache that is
// invalidated on writes; the cache may be nil to disable caching.
type PostgresDB struct {
	pool   *pgxpool.Pool
	cache  *cache.Cache
	logger *zap.Logger
}

// New connects to Postgres and verifies the connection
func New(ctx context.Context, databaseURL string, c *cache.Cache, logger *zap.Logger) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresDB{pool: pool, cache: c, logger: logger}, nil
}

// Ping verifies the database connection
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close closes the connection pool
func (db *PostgresDB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

const workerColumns = `id, username, full_name, status,
	total_profit::text, referral_earnings::text,
	referrer_id, mentor_id, wallet_address,
	experience_text, source_text, created_at, last_activity`

func scanWorker(row pgx.Row) (*models.Worker, error) {
	var (
		w                     models.Worker
		totalStr, earningsStr string
	)
	err := row.Scan(&w.ID, &w.Username, &w.FullName, &w.Status,
		&totalStr, &earningsStr,
		&w.ReferrerID, &w.MentorID, &w.WalletAddress,
		&w.ExperienceText, &w.SourceText, &w.CreatedAt, &w.LastActivity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if w.TotalProfit, err = decimal.NewFromString(totalStr); err != nil {
		return nil, fmt.Errorf("parse total_profit: %w", err)
	}
	if w.ReferralEarnings, err = decimal.NewFromString(earningsStr); err != nil {
		return nil, fmt.Errorf("parse referral_earnings: %w", err)
	}
	return &w, nil
}

// CreateWorker inserts a new worker in pending status
func (db *PostgresDB) CreateWorker(ctx context.Context, w models.Worker) error {
	status := w.Status
	if status == "" {
		status = models.StatusPending
	}
	_, err := db.pool.Exec(ctx, `
		INSERT INTO workers (id, username, full_name, status, referrer_id, experience_text, source_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.Username, w.FullName, status, w.ReferrerID, w.ExperienceText, w.SourceText)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	return nil
}

// GetWorker returns a worker by Telegram user id (cached short)
func (db *PostgresDB) GetWorker(ctx context.Context, id int64) (*models.Worker, error) {
	key := fmt.Sprintf("worker:%d", id)
	if db.cache != nil {
		if cached, ok := db.cache.Get(key).(*models.Worker); ok {
			cp := *cached
			return &cp, nil
		}
	}

	row := db.pool.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, id)
	w, err := scanWorker(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get worker %d: %w", id, err)
	}

	if db.cache != nil {
		cp := *w
		db.cache.Set(key, &cp, cache.TTLShort)
	}
	return w, nil
}

// GetWorkerByUsername returns a worker by username, case-insensitive
func (db *PostgresDB) GetWorkerByUsername(ctx context.Context, username string) (*models.Worker, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE lower(username) = lower($1)`, username)
	w, err := scanWorker(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get worker @%s: %w", username, err)
	}
	return w, nil
}

// UpdateWorkerStatus transitions a worker's moderation status
func (db *PostgresDB) UpdateWorkerStatus(ctx context.Context, id int64, status models.WorkerStatus) error {
	tag, err := db.pool.Exec(ctx, `UPDATE workers SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update worker status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	db.invalidateWorker(id)
	return nil
}

// UpdateWorkerWallet sets the worker's payout wallet address
func (db *PostgresDB) UpdateWorkerWallet(ctx context.Context, id int64, wallet string) error {
	tag, err := db.pool.Exec(ctx, `UPDATE workers SET wallet_address = $1 WHERE id = $2`, wallet, id)
	if err != nil {
		return fmt.Errorf("failed to update worker wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	db.invalidateWorker(id)
	return nil
}

// ListWorkersByStatus returns workers in the given moderation status
func (db *PostgresDB) ListWorkersByStatus(ctx context.Context, status models.WorkerStatus) ([]models.Worker, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE status = $1 ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	var workers []models.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, *w)
	}
	return workers, rows.Err()
}

// ActiveWorkerIDs returns ids of all active workers, used by broadcasts
func (db *PostgresDB) ActiveWorkerIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.pool.Query(ctx, `SELECT id FROM workers WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active worker ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan worker id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountReferrals counts workers referred by the given worker
func (db *PostgresDB) CountReferrals(ctx context.Context, referrerID int64) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workers WHERE referrer_id = $1`, referrerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

// AddToWorkerTotal atomically increments the worker's cumulative total
func (db *PostgresDB) AddToWorkerTotal(ctx context.Context, id int64, delta decimal.Decimal) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE workers SET total_profit = total_profit + $1::numeric WHERE id = $2`,
		delta.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update worker total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	db.invalidateWorker(id)
	return nil
}

// AddReferralEarnings atomically increments the referral earnings counter
func (db *PostgresDB) AddReferralEarnings(ctx context.Context, id int64, delta decimal.Decimal) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE workers SET referral_earnings = referral_earnings + $1::numeric WHERE id = $2`,
		delta.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update referral earnings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	db.invalidateWorker(id)
	return nil
}

// Service operations

// CreateService adds a new active service
func (db *PostgresDB) CreateService(ctx context.Context, s models.Service) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx, `
		INSERT INTO services (name, icon, description, manual_link, bot_link, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id`,
		s.Name, s.Icon, s.Description, s.ManualLink, s.BotLink).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create service: %w", err)
	}
	db.invalidate("services")
	return id, nil
}

// ListServices returns all active services (cached medium)
func (db *PostgresDB) ListServices(ctx context.Context) ([]models.Service, error) {
	if db.cache != nil {
		if cached, ok := db.cache.Get("services").([]models.Service); ok {
			return cached, nil
		}
	}

	rows, err := db.pool.Query(ctx, `
		SELECT id, name, icon, description, manual_link, bot_link, is_active
		FROM services WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Icon, &s.Description, &s.ManualLink, &s.BotLink, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if db.cache != nil {
		db.cache.Set("services", services, cache.TTLMedium)
	}
	return services, nil
}

// GetService returns an active service by id
func (db *PostgresDB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var s models.Service
	err := db.pool.QueryRow(ctx, `
		SELECT id, name, icon, description, manual_link, bot_link, is_active
		FROM services WHERE id = $1 AND is_active`, id).
		Scan(&s.ID, &s.Name, &s.Icon, &s.Description, &s.ManualLink, &s.BotLink, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get service %d: %w", id, err)
	}
	return &s, nil
}

// DeactivateService soft-deletes a service; profit history keeps
// referencing it by name.
func (db *PostgresDB) DeactivateService(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `UPDATE services SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	db.invalidate("services")
	return nil
}

func (db *PostgresDB) invalidateWorker(id int64) {
	if db.cache == nil {
		return
	}
	db.cache.Delete(fmt.Sprintf("worker:%d", id))
	db.cache.InvalidatePrefix(fmt.Sprintf("stats:%d", id))
	db.cache.InvalidatePrefix(fmt.Sprintf("mentor:worker:%d", id))
}

func (db *PostgresDB) invalidate(key string) {
	if db.cache != nil {
		db.cache.Delete(key)
	}
}

var _ storage.Storage = (*PostgresDB)(nil)
