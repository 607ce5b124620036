package stubs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mainbot/internal/models"
	"mainbot/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for
// testing. Optional Fail* hooks let tests inject failures at specific
// write points.
type MockDB struct {
	mu sync.RWMutex

	workers        map[int64]*models.Worker
	services       map[int64]*models.Service
	profits        map[int64]*models.ProfitRecord
	referralShares map[int64]*models.ReferralShare
	mentorShares   map[int64]*models.MentorShare
	mentors        map[int64]*models.Mentor
	rankChanges    []models.RankChange
	adminActions   []models.AdminAction
	notifications  []models.Notification
	broadcasts     map[int64]*models.MentorBroadcast
	recipients     map[int64][]*models.BroadcastRecipient
	settings       map[string]string

	nextID int64

	// Failure injection for error-path tests
	FailCreateProfit        error
	FailCreateReferralShare error
	FailCreateMentorShare   error
	FailAddToWorkerTotal    error
}

// NewMockDB creates a new empty mock database
func NewMockDB() *MockDB {
	return &MockDB{
		workers:        make(map[int64]*models.Worker),
		services:       make(map[int64]*models.Service),
		profits:        make(map[int64]*models.ProfitRecord),
		referralShares: make(map[int64]*models.ReferralShare),
		mentorShares:   make(map[int64]*models.MentorShare),
		mentors:        make(map[int64]*models.Mentor),
		broadcasts:     make(map[int64]*models.MentorBroadcast),
		recipients:     make(map[int64][]*models.BroadcastRecipient),
		settings:       make(map[string]string),
	}
}

func (m *MockDB) nextIDLocked() int64 {
	m.nextID++
	return m.nextID
}

// Worker operations

func (m *MockDB) CreateWorker(ctx context.Context, w models.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	cp := w
	m.workers[w.ID] = &cp
	return nil
}

func (m *MockDB) GetWorker(ctx context.Context, id int64) (*models.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *MockDB) GetWorkerByUsername(ctx context.Context, username string) (*models.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.workers {
		if strings.EqualFold(w.Username, username) {
			cp := *w
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *MockDB) UpdateWorkerStatus(ctx context.Context, id int64, status models.WorkerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		return storage.ErrNotFound
	}
	w.Status = status
	return nil
}

func (m *MockDB) UpdateWorkerWallet(ctx context.Context, id int64, wallet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		return storage.ErrNotFound
	}
	w.WalletAddress = wallet
	return nil
}

func (m *MockDB) ListWorkersByStatus(ctx context.Context, status models.WorkerStatus) ([]models.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Worker
	for _, w := range m.workers {
		if w.Status == status {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDB) ActiveWorkerIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, w := range m.workers {
		if w.Status == models.StatusActive {
			ids = append(ids, w.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MockDB) CountReferrals(ctx context.Context, referrerID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, w := range m.workers {
		if w.ReferrerID != nil && *w.ReferrerID == referrerID {
			count++
		}
	}
	return count, nil
}

func (m *MockDB) AddToWorkerTotal(ctx context.Context, id int64, delta decimal.Decimal) error {
	if m.FailAddToWorkerTotal != nil {
		return m.FailAddToWorkerTotal
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		return storage.ErrNotFound
	}
	w.TotalProfit = w.TotalProfit.Add(delta)
	return nil
}

func (m *MockDB) AddReferralEarnings(ctx context.Context, id int64, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		return storage.ErrNotFound
	}
	w.ReferralEarnings = w.ReferralEarnings.Add(delta)
	return nil
}

// Service operations

func (m *MockDB) CreateService(ctx context.Context, s models.Service) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextIDLocked()
	s.IsActive = true
	m.services[s.ID] = &s
	return s.ID, nil
}

func (m *MockDB) ListServices(ctx context.Context) ([]models.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Service
	for _, s := range m.services {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok || !s.IsActive {
		return nil, storage.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockDB) DeactivateService(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.IsActive = false
	return nil
}

// Profit ledger

func (m *MockDB) CreateProfit(ctx context.Context, workerID int64, amount, netProfit decimal.Decimal, serviceName string) (int64, error) {
	if m.FailCreateProfit != nil {
		return 0, m.FailCreateProfit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &models.ProfitRecord{
		ID:          m.nextIDLocked(),
		WorkerID:    workerID,
		Amount:      amount,
		NetProfit:   netProfit,
		ServiceName: serviceName,
		Status:      models.StatusHold,
		CreatedAt:   time.Now(),
	}
	m.profits[p.ID] = p
	return p.ID, nil
}

func (m *MockDB) GetProfit(ctx context.Context, id int64) (*models.ProfitRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profits[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockDB) ListWorkerProfits(ctx context.Context, workerID int64, limit int) ([]models.ProfitRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ProfitRecord
	for _, p := range m.profits {
		if p.WorkerID == workerID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockDB) MarkProfitsPaid(ctx context.Context, workerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	count := 0
	for _, p := range m.profits {
		if p.WorkerID == workerID && p.Status == models.StatusHold {
			p.Status = models.StatusPaid
			p.PaidAt = &now
			count++
		}
	}
	return count, nil
}

func (m *MockDB) UnpaidProfitSummary(ctx context.Context) ([]models.UnpaidEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byWorker := make(map[int64]*models.UnpaidEntry)
	for _, p := range m.profits {
		if p.Status != models.StatusHold {
			continue
		}
		e, ok := byWorker[p.WorkerID]
		if !ok {
			e = &models.UnpaidEntry{UserID: p.WorkerID}
			if w, exists := m.workers[p.WorkerID]; exists {
				e.Username = w.Username
				e.FullName = w.FullName
			}
			byWorker[p.WorkerID] = e
		}
		e.Count++
		e.Total = e.Total.Add(p.NetProfit)
	}
	return summaryList(byWorker), nil
}

// Referral ledger

func (m *MockDB) CreateReferralShare(ctx context.Context, referrerID, referralID, profitID int64, amount decimal.Decimal) (int64, error) {
	if m.FailCreateReferralShare != nil {
		return 0, m.FailCreateReferralShare
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.ReferralShare{
		ID:         m.nextIDLocked(),
		ReferrerID: referrerID,
		ReferralID: referralID,
		ProfitID:   profitID,
		Amount:     amount,
		Status:     models.StatusHold,
		CreatedAt:  time.Now(),
	}
	m.referralShares[s.ID] = s
	return s.ID, nil
}

func (m *MockDB) MarkReferralSharesPaid(ctx context.Context, referrerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	count := 0
	for _, s := range m.referralShares {
		if s.ReferrerID == referrerID && s.Status == models.StatusHold {
			s.Status = models.StatusPaid
			s.PaidAt = &now
			count++
		}
	}
	return count, nil
}

func (m *MockDB) UnpaidReferralSummary(ctx context.Context) ([]models.UnpaidEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byReferrer := make(map[int64]*models.UnpaidEntry)
	for _, s := range m.referralShares {
		if s.Status != models.StatusHold {
			continue
		}
		e, ok := byReferrer[s.ReferrerID]
		if !ok {
			e = &models.UnpaidEntry{UserID: s.ReferrerID}
			if w, exists := m.workers[s.ReferrerID]; exists {
				e.Username = w.Username
				e.FullName = w.FullName
			}
			byReferrer[s.ReferrerID] = e
		}
		e.Count++
		e.Total = e.Total.Add(s.Amount)
	}
	return summaryList(byReferrer), nil
}

// Mentor ledger

func (m *MockDB) CreateMentorShare(ctx context.Context, mentorID, mentorUserID, studentID, profitID int64, amount decimal.Decimal, percent int) (int64, error) {
	if m.FailCreateMentorShare != nil {
		return 0, m.FailCreateMentorShare
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.MentorShare{
		ID:           m.nextIDLocked(),
		MentorID:     mentorID,
		MentorUserID: mentorUserID,
		StudentID:    studentID,
		ProfitID:     profitID,
		Amount:       amount,
		Percent:      percent,
		Status:       models.StatusHold,
		CreatedAt:    time.Now(),
	}
	m.mentorShares[s.ID] = s
	return s.ID, nil
}

func (m *MockDB) MarkMentorSharesPaid(ctx context.Context, mentorUserID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	count := 0
	for _, s := range m.mentorShares {
		if s.MentorUserID == mentorUserID && s.Status == models.StatusHold {
			s.Status = models.StatusPaid
			s.PaidAt = &now
			count++
		}
	}
	return count, nil
}

func (m *MockDB) UnpaidMentorSummary(ctx context.Context) ([]models.UnpaidEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byMentor := make(map[int64]*models.UnpaidEntry)
	for _, s := range m.mentorShares {
		if s.Status != models.StatusHold {
			continue
		}
		e, ok := byMentor[s.MentorUserID]
		if !ok {
			e = &models.UnpaidEntry{UserID: s.MentorUserID}
			if w, exists := m.workers[s.MentorUserID]; exists {
				e.Username = w.Username
				e.FullName = w.FullName
			}
			byMentor[s.MentorUserID] = e
		}
		e.Count++
		e.Total = e.Total.Add(s.Amount)
	}
	return summaryList(byMentor), nil
}

// Mentor operations

func (m *MockDB) CreateMentor(ctx context.Context, userID int64, serviceName string, percent int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := &models.Mentor{
		ID:          m.nextIDLocked(),
		UserID:      userID,
		ServiceName: serviceName,
		Percent:     percent,
		IsActive:    true,
	}
	if w, ok := m.workers[userID]; ok {
		mt.Username = w.Username
	}
	m.mentors[mt.ID] = mt
	return mt.ID, nil
}

func (m *MockDB) GetMentor(ctx context.Context, id int64) (*models.Mentor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.mentors[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *mt
	return &cp, nil
}

func (m *MockDB) ListMentors(ctx context.Context) ([]models.Mentor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Mentor
	for _, mt := range m.mentors {
		if mt.IsActive {
			out = append(out, *mt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDB) GetWorkerMentor(ctx context.Context, workerID int64) (*models.Mentor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[workerID]
	if !ok || w.MentorID == nil {
		return nil, storage.ErrNotFound
	}
	mt, ok := m.mentors[*w.MentorID]
	if !ok || !mt.IsActive {
		return nil, storage.ErrNotFound
	}
	cp := *mt
	return &cp, nil
}

func (m *MockDB) AssignMentor(ctx context.Context, workerID, mentorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[workerID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := m.mentors[mentorID]; !ok {
		return storage.ErrNotFound
	}
	w.MentorID = &mentorID
	return nil
}

func (m *MockDB) RemoveMentor(ctx context.Context, workerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[workerID]
	if !ok {
		return storage.ErrNotFound
	}
	w.MentorID = nil
	return nil
}

func (m *MockDB) AddMentorEarnings(ctx context.Context, mentorID int64, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.mentors[mentorID]
	if !ok {
		return storage.ErrNotFound
	}
	mt.TotalEarned = mt.TotalEarned.Add(delta)
	return nil
}

// Statistics operations

func (m *MockDB) GetWorkerStats(ctx context.Context, workerID int64) (*models.WorkerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &models.WorkerStats{}
	now := time.Now()
	for _, p := range m.profits {
		if p.WorkerID != workerID {
			continue
		}
		stats.TotalCount++
		stats.TotalProfit = stats.TotalProfit.Add(p.NetProfit)
		if p.NetProfit.GreaterThan(stats.MaxProfit) {
			stats.MaxProfit = p.NetProfit
		}
		if p.CreatedAt.After(now.AddDate(0, -1, 0)) {
			stats.MonthProfit = stats.MonthProfit.Add(p.NetProfit)
		}
		if p.CreatedAt.After(now.AddDate(0, 0, -7)) {
			stats.WeekProfit = stats.WeekProfit.Add(p.NetProfit)
		}
	}
	if stats.TotalCount > 0 {
		stats.AvgProfit = stats.TotalProfit.Div(decimal.NewFromInt(int64(stats.TotalCount)))
	}
	return stats, nil
}

func (m *MockDB) TopWorkers(ctx context.Context, period string, limit int) ([]models.TopWorker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	since := periodStart(period)
	byWorker := make(map[int64]*models.TopWorker)
	for _, p := range m.profits {
		if !since.IsZero() && p.CreatedAt.Before(since) {
			continue
		}
		e, ok := byWorker[p.WorkerID]
		if !ok {
			e = &models.TopWorker{UserID: p.WorkerID}
			if w, exists := m.workers[p.WorkerID]; exists {
				e.Username = w.Username
				e.FullName = w.FullName
			}
			byWorker[p.WorkerID] = e
		}
		e.Count++
		e.Total = e.Total.Add(p.NetProfit)
	}
	var out []models.TopWorker
	for _, e := range byWorker {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total.GreaterThan(out[j].Total) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Audit trail

func (m *MockDB) LogRankChange(ctx context.Context, change models.RankChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	change.ID = m.nextIDLocked()
	change.CreatedAt = time.Now()
	m.rankChanges = append(m.rankChanges, change)
	return nil
}

func (m *MockDB) LogAdminAction(ctx context.Context, action models.AdminAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	action.ID = m.nextIDLocked()
	action.CreatedAt = time.Now()
	m.adminActions = append(m.adminActions, action)
	return nil
}

func (m *MockDB) CreateNotification(ctx context.Context, n models.Notification) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = m.nextIDLocked()
	n.CreatedAt = time.Now()
	m.notifications = append(m.notifications, n)
	return n.ID, nil
}

// RankChanges returns the recorded rank change log (test helper)
func (m *MockDB) RankChanges() []models.RankChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RankChange, len(m.rankChanges))
	copy(out, m.rankChanges)
	return out
}

// Notifications returns the stored notifications (test helper)
func (m *MockDB) Notifications() []models.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// Mentor broadcast queue

func (m *MockDB) CreateMentorBroadcast(ctx context.Context, mentorID int64, text string, studentIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &models.MentorBroadcast{
		ID:          m.nextIDLocked(),
		MentorID:    mentorID,
		MessageText: text,
		Status:      "pending",
		CreatedAt:   time.Now(),
	}
	m.broadcasts[b.ID] = b
	for _, id := range studentIDs {
		m.recipients[b.ID] = append(m.recipients[b.ID], &models.BroadcastRecipient{
			BroadcastID: b.ID,
			StudentID:   id,
			Status:      "pending",
		})
	}
	return b.ID, nil
}

func (m *MockDB) PendingMentorBroadcasts(ctx context.Context) ([]models.MentorBroadcast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.MentorBroadcast
	for _, b := range m.broadcasts {
		if b.Status == "pending" {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDB) BroadcastRecipients(ctx context.Context, broadcastID int64) ([]models.BroadcastRecipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.BroadcastRecipient
	for _, r := range m.recipients[broadcastID] {
		out = append(out, *r)
	}
	return out, nil
}

func (m *MockDB) UpdateBroadcastRecipient(ctx context.Context, broadcastID, studentID int64, status, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipients[broadcastID] {
		if r.StudentID == studentID {
			r.Status = status
			r.Error = errText
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *MockDB) UpdateBroadcastStatus(ctx context.Context, broadcastID int64, status string, sentCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[broadcastID]
	if !ok {
		return storage.ErrNotFound
	}
	b.Status = status
	b.SentCount = sentCount
	return nil
}

// Settings

func (m *MockDB) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (m *MockDB) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Lifecycle

func (m *MockDB) Ping(ctx context.Context) error { return nil }

func (m *MockDB) Close() error { return nil }

func summaryList(byUser map[int64]*models.UnpaidEntry) []models.UnpaidEntry {
	var out []models.UnpaidEntry
	for _, e := range byUser {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func periodStart(period string) time.Time {
	now := time.Now()
	switch period {
	case "month":
		return now.AddDate(0, -1, 0)
	case "week":
		return now.AddDate(0, 0, -7)
	default:
		return time.Time{}
	}
}

var _ storage.Storage = (*MockDB)(nil)
