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

const mentorColumns = `id, user_id, username, service_name, percent, total_earned::text, is_active`

func scanMentor(row pgx.Row) (*models.Mentor, error) {
	var (
		m         models.Mentor
		earnedStr string
	)
	err := row.Scan(&m.ID, &m.UserID, &m.Username, &m.ServiceName, &m.Percent, &earnedStr, &m.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if m.TotalEarned, err = decimal.NewFromString(earnedStr); err != nil {
		return nil, fmt.Errorf("parse total_earned: %w", err)
	}
	return &m, nil
}

// CreateMentor registers a mentor for a service. The username is
// snapshotted from the workers table so payout menus stay readable
// even if the account later changes it.
func (db *PostgresDB) CreateMentor(ctx context.Context, userID int64, serviceName string, percent int) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx, `
		INSERT INTO mentors (user_id, username, service_name, percent, is_active)
		VALUES ($1, COALESCE((SELECT username FROM workers WHERE id = $1), ''), $2, $3, TRUE)
		RETURNING id`,
		userID, serviceName, percent).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create mentor: %w", err)
	}
	return id, nil
}

// GetMentor returns an active mentor by id
func (db *PostgresDB) GetMentor(ctx context.Context, id int64) (*models.Mentor, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+mentorColumns+` FROM mentors WHERE id = $1 AND is_active`, id)
	m, err := scanMentor(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get mentor %d: %w", id, err)
	}
	return m, nil
}

// ListMentors returns all active mentors
func (db *PostgresDB) ListMentors(ctx context.Context) ([]models.Mentor, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+mentorColumns+` FROM mentors WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentors: %w", err)
	}
	defer rows.Close()

	var mentors []models.Mentor
	for rows.Next() {
		m, err := scanMentor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mentor: %w", err)
		}
		mentors = append(mentors, *m)
	}
	return mentors, rows.Err()
}

// GetWorkerMentor resolves the mentor assigned to a worker (cached long).
// Returns storage.ErrNotFound when the worker has no mentor or the
// mentor has been deactivated.
func (db *PostgresDB) GetWorkerMentor(ctx context.Context, workerID int64) (*models.Mentor, error) {
	key := fmt.Sprintf("mentor:worker:%d", workerID)
	if db.cache != nil {
		if cached, ok := db.cache.Get(key).(*models.Mentor); ok {
			cp := *cached
			return &cp, nil
		}
	}

	row := db.pool.QueryRow(ctx, `
		SELECT m.id, m.user_id, m.username, m.service_name, m.percent, m.total_earned::text, m.is_active
		FROM workers w
		JOIN mentors m ON m.id = w.mentor_id
		WHERE w.id = $1 AND m.is_active`, workerID)
	m, err := scanMentor(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get worker %d mentor: %w", workerID, err)
	}

	if db.cache != nil {
		cp := *m
		db.cache.Set(key, &cp, cache.TTLLong)
	}
	return m, nil
}

// AssignMentor links a worker to a mentor
func (db *PostgresDB) AssignMentor(ctx context.Context, workerID, mentorID int64) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE workers SET mentor_id = $1 WHERE id = $2`, mentorID, workerID)
	if err != nil {
		return fmt.Errorf("failed to assign mentor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	db.invalidateWorker(workerID)
	return nil
}

// RemoveMentor detaches the worker from their mentor
func (db *PostgresDB) RemoveMentor(ctx context.Context, workerID int64) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE workers SET mentor_id = NULL WHERE id = $1`, workerID)
	if err != nil {
		return fmt.Errorf("failed to remove mentor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	db.invalidateWorker(workerID)
	return nil
}

// AddMentorEarnings atomically increments a mentor's lifetime earnings
func (db *PostgresDB) AddMentorEarnings(ctx context.Context, mentorID int64, delta decimal.Decimal) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE mentors SET total_earned = total_earned + $1::numeric WHERE id = $2`,
		delta.String(), mentorID)
	if err != nil {
		return fmt.Errorf("failed to update mentor earnings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
