package pg

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgresTC "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"mainbot/internal/models"
	"mainbot/internal/storage"
)

// runMigrations applies the goose migrations to a fresh container
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "../../../migrations")
}

// setupTestDB creates a test Postgres instance using testcontainers
func setupTestDB(t *testing.T) (*PostgresDB, func()) {
	ctx := context.Background()

	pgContainer, err := postgresTC.Run(ctx,
		"postgres:16-alpine",
		postgresTC.WithDatabase("mainbot_test"),
		postgresTC.WithUsername("test"),
		postgresTC.WithPassword("test"),
		postgresTC.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start Postgres container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, runMigrations(dsn), "Failed to run migrations")

	db, err := New(ctx, dsn, nil, zap.NewNop())
	require.NoError(t, err, "Failed to connect to Postgres")

	cleanup := func() {
		db.Close()
		pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func seedWorker(t *testing.T, db *PostgresDB, id int64, username string, status models.WorkerStatus) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.CreateWorker(ctx, models.Worker{ID: id, Username: username, FullName: username, Status: status}))
}

func TestPostgresDB_WorkerLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := db.GetWorker(ctx, 100)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	seedWorker(t, db, 100, "alice", models.StatusPending)

	worker, err := db.GetWorker(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, worker.Status)
	assert.True(t, worker.TotalProfit.IsZero())

	// Case-insensitive username lookup
	byName, err := db.GetWorkerByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(100), byName.ID)

	require.NoError(t, db.UpdateWorkerStatus(ctx, 100, models.StatusActive))
	require.NoError(t, db.UpdateWorkerWallet(ctx, 100, "TRC20-abc"))

	worker, err = db.GetWorker(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, worker.Status)
	assert.Equal(t, "TRC20-abc", worker.WalletAddress)

	assert.ErrorIs(t, db.UpdateWorkerStatus(ctx, 999, models.StatusBanned), storage.ErrNotFound)
}

func TestPostgresDB_AtomicTotals(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedWorker(t, db, 100, "alice", models.StatusActive)

	require.NoError(t, db.AddToWorkerTotal(ctx, 100, decimal.RequireFromString("100.50")))
	require.NoError(t, db.AddToWorkerTotal(ctx, 100, decimal.RequireFromString("0.25")))
	require.NoError(t, db.AddReferralEarnings(ctx, 100, decimal.RequireFromString("5.00")))

	worker, err := db.GetWorker(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "100.75", worker.TotalProfit.StringFixed(2))
	assert.Equal(t, "5.00", worker.ReferralEarnings.StringFixed(2))
}

func TestPostgresDB_ProfitLedger(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedWorker(t, db, 100, "alice", models.StatusActive)

	id, err := db.CreateProfit(ctx, 100, decimal.RequireFromString("1000.00"), decimal.RequireFromString("500.00"), "Сервис А")
	require.NoError(t, err)

	profit, err := db.GetProfit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusHold, profit.Status)
	assert.Equal(t, "500.00", profit.NetProfit.StringFixed(2))
	assert.Nil(t, profit.PaidAt)

	_, err = db.CreateProfit(ctx, 100, decimal.RequireFromString("200.00"), decimal.RequireFromString("120.00"), "Сервис Б")
	require.NoError(t, err)

	profits, err := db.ListWorkerProfits(ctx, 100, 0)
	require.NoError(t, err)
	assert.Len(t, profits, 2)

	summary, err := db.UnpaidProfitSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, int64(100), summary[0].UserID)
	assert.Equal(t, 2, summary[0].Count)
	assert.Equal(t, "620.00", summary[0].Total.StringFixed(2))

	// Settlement stamps paid_at and is idempotent
	count, err := db.MarkProfitsPaid(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	profit, err = db.GetProfit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, profit.Status)
	assert.NotNil(t, profit.PaidAt)

	count, err = db.MarkProfitsPaid(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, count)

	summary, err = db.UnpaidProfitSummary(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestPostgresDB_ReferralAndMentorLedgers(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedWorker(t, db, 100, "alice", models.StatusActive)
	seedWorker(t, db, 200, "bob", models.StatusActive)

	profitID, err := db.CreateProfit(ctx, 100, decimal.RequireFromString("1000.00"), decimal.RequireFromString("500.00"), "Сервис А")
	require.NoError(t, err)

	_, err = db.CreateReferralShare(ctx, 200, 100, profitID, decimal.RequireFromString("50.00"))
	require.NoError(t, err)

	mentorID, err := db.CreateMentor(ctx, 200, "Сервис А", 20)
	require.NoError(t, err)
	_, err = db.CreateMentorShare(ctx, mentorID, 200, 100, profitID, decimal.RequireFromString("110.00"), 20)
	require.NoError(t, err)

	refSummary, err := db.UnpaidReferralSummary(ctx)
	require.NoError(t, err)
	require.Len(t, refSummary, 1)
	assert.Equal(t, int64(200), refSummary[0].UserID)
	assert.Equal(t, "50.00", refSummary[0].Total.StringFixed(2))

	mentorSummary, err := db.UnpaidMentorSummary(ctx)
	require.NoError(t, err)
	require.Len(t, mentorSummary, 1)
	assert.Equal(t, "110.00", mentorSummary[0].Total.StringFixed(2))

	count, err := db.MarkReferralSharesPaid(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = db.MarkMentorSharesPaid(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Ledgers are independent: paying one leaves the profit ledger alone
	summary, err := db.UnpaidProfitSummary(ctx)
	require.NoError(t, err)
	assert.Len(t, summary, 1)
}

func TestPostgresDB_MentorAssignment(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedWorker(t, db, 100, "student", models.StatusActive)
	seedWorker(t, db, 200, "mentor", models.StatusActive)

	_, err := db.GetWorkerMentor(ctx, 100)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mentorID, err := db.CreateMentor(ctx, 200, "Сервис А", 25)
	require.NoError(t, err)

	require.NoError(t, db.AssignMentor(ctx, 100, mentorID))

	mentor, err := db.GetWorkerMentor(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(200), mentor.UserID)
	assert.Equal(t, "mentor", mentor.Username)
	assert.Equal(t, 25, mentor.Percent)

	require.NoError(t, db.AddMentorEarnings(ctx, mentorID, decimal.RequireFromString("110.00")))
	mentor, err = db.GetMentor(ctx, mentorID)
	require.NoError(t, err)
	assert.Equal(t, "110.00", mentor.TotalEarned.StringFixed(2))

	require.NoError(t, db.RemoveMentor(ctx, 100))
	_, err = db.GetWorkerMentor(ctx, 100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresDB_StatsAndTop(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedWorker(t, db, 100, "alice", models.StatusActive)
	seedWorker(t, db, 200, "bob", models.StatusActive)
	seedWorker(t, db, 300, "banned", models.StatusBanned)

	amounts := []string{"100.00", "300.00", "50.00"}
	for _, a := range amounts {
		_, err := db.CreateProfit(ctx, 100, decimal.RequireFromString(a), decimal.RequireFromString(a), "Сервис")
		require.NoError(t, err)
	}
	_, err := db.CreateProfit(ctx, 200, decimal.RequireFromString("200.00"), decimal.RequireFromString("200.00"), "Сервис")
	require.NoError(t, err)
	_, err = db.CreateProfit(ctx, 300, decimal.RequireFromString("900.00"), decimal.RequireFromString("900.00"), "Сервис")
	require.NoError(t, err)

	stats, err := db.GetWorkerStats(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCount)
	assert.Equal(t, "450.00", stats.TotalProfit.StringFixed(2))
	assert.Equal(t, "150.00", stats.AvgProfit.StringFixed(2))
	assert.Equal(t, "300.00", stats.MaxProfit.StringFixed(2))

	// Banned workers never appear on the leaderboard
	top, err := db.TopWorkers(ctx, "all", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(100), top[0].UserID)
	assert.Equal(t, "450.00", top[0].Total.StringFixed(2))
	assert.Equal(t, int64(200), top[1].UserID)

	_, err = db.TopWorkers(ctx, "decade", 10)
	assert.Error(t, err)
}

func TestPostgresDB_ServicesSoftDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	id, err := db.CreateService(ctx, models.Service{Name: "Сервис А", Icon: "🎬"})
	require.NoError(t, err)

	services, err := db.ListServices(ctx)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.True(t, services[0].IsActive)

	require.NoError(t, db.DeactivateService(ctx, id))

	services, err = db.ListServices(ctx)
	require.NoError(t, err)
	assert.Empty(t, services)

	_, err = db.GetService(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Repeat deactivation is a no-op
	assert.NoError(t, db.DeactivateService(ctx, id))

	assert.ErrorIs(t, db.DeactivateService(ctx, 9999), storage.ErrNotFound)
}

func TestPostgresDB_MentorBroadcastQueue(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedWorker(t, db, 100, "student1", models.StatusActive)
	seedWorker(t, db, 200, "mentor", models.StatusActive)

	mentorID, err := db.CreateMentor(ctx, 200, "Сервис А", 20)
	require.NoError(t, err)

	id, err := db.CreateMentorBroadcast(ctx, mentorID, "Встреча в 19:00", []int64{100})
	require.NoError(t, err)

	pending, err := db.PendingMentorBroadcasts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "pending", pending[0].Status)

	recipients, err := db.BroadcastRecipients(ctx, id)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "pending", recipients[0].Status)

	require.NoError(t, db.UpdateBroadcastRecipient(ctx, id, 100, "sent", ""))
	require.NoError(t, db.UpdateBroadcastStatus(ctx, id, "completed", 1))

	pending, err = db.PendingMentorBroadcasts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPostgresDB_Settings(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := db.GetSetting(ctx, "maintenance_mode")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, db.SetSetting(ctx, "maintenance_mode", "on"))
	require.NoError(t, db.SetSetting(ctx, "maintenance_mode", "off"))

	value, err := db.GetSetting(ctx, "maintenance_mode")
	require.NoError(t, err)
	assert.Equal(t, "off", value)
}
