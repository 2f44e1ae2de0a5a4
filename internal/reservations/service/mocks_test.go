package service

import (
	"context"
	"sync"
	"time"

	reserrors "slotbook/internal/reservations/errors"
	"slotbook/pkg/config"
	mongotx "slotbook/pkg/db/mongo"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// In-memory test doubles. Func fields override the default store-backed
// behavior per test.

type mockReservationRepository struct {
	mu    sync.Mutex
	store map[string]*model.Reservation

	createFunc             func(ctx context.Context, r *model.Reservation) error
	findByIDFunc           func(ctx context.Context, id string) (*model.Reservation, error)
	updateStatusFunc       func(ctx context.Context, id string, from, to model.Status, version int64, reason string) error
	findActiveOnSlotFunc   func(ctx context.Context, shopID string, date time.Time, timeOfDay string) ([]*model.Reservation, error)
	findConfirmedDueByFunc func(ctx context.Context, dateCutoff time.Time, limit int) ([]*model.Reservation, error)
	executeTransactionFunc func(ctx context.Context, fn mongotx.TransactionFunc) error
}

func newMockReservationRepository() *mockReservationRepository {
	return &mockReservationRepository{store: make(map[string]*model.Reservation)}
}

func (m *mockReservationRepository) put(r *model.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.store[r.ID] = &cp
}

func (m *mockReservationRepository) Create(ctx context.Context, r *model.Reservation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, r)
	}
	m.put(r)
	return nil
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return nil, reserrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.store {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockReservationRepository) FindByShopAndDate(ctx context.Context, shopID string, date time.Time, limit int, offset int64) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.store {
		if r.ShopID == shopID && r.ReservationDate.Equal(date) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockReservationRepository) FindActiveOnSlot(ctx context.Context, shopID string, date time.Time, timeOfDay string) ([]*model.Reservation, error) {
	if m.findActiveOnSlotFunc != nil {
		return m.findActiveOnSlotFunc(ctx, shopID, date, timeOfDay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.store {
		if r.ShopID == shopID && r.ReservationTime == timeOfDay && r.ReservationDate.Equal(date) && r.Active() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockReservationRepository) FindConfirmedDueBy(ctx context.Context, dateCutoff time.Time, limit int) ([]*model.Reservation, error) {
	if m.findConfirmedDueByFunc != nil {
		return m.findConfirmedDueByFunc(ctx, dateCutoff, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.store {
		if r.Status == model.StatusConfirmed && !r.ReservationDate.After(dateCutoff) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockReservationRepository) UpdateStatus(ctx context.Context, id string, from, to model.Status, version int64, reason string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, from, to, version, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return reserrors.ErrNotFound
	}
	if r.Status != from || r.Version != version {
		return reserrors.ErrStateConflict
	}
	r.Status = to
	r.Version++
	if reason != "" {
		r.Reason = reason
	}
	return nil
}

func (m *mockReservationRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.store)), nil
}

func (m *mockReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.executeTransactionFunc != nil {
		return m.executeTransactionFunc(ctx, fn)
	}
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockSlotLockRepository struct {
	mu    sync.Mutex
	held  map[string]bool
	locks int

	acquireFunc func(ctx context.Context, slotKey string) (*model.SlotLock, error)
}

func newMockSlotLockRepository() *mockSlotLockRepository {
	return &mockSlotLockRepository{held: make(map[string]bool)}
}

func (m *mockSlotLockRepository) Acquire(ctx context.Context, slotKey string) (*model.SlotLock, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, slotKey)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[slotKey] {
		return nil, reserrors.ErrSlotLocked
	}
	m.held[slotKey] = true
	m.locks++
	return &model.SlotLock{ID: slotKey}, nil
}

func (m *mockSlotLockRepository) Release(ctx context.Context, slotKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, slotKey)
	return nil
}

type mockStateLogRepository struct {
	mu      sync.Mutex
	entries []*model.StateChangeLog

	appendFunc func(ctx context.Context, entry *model.StateChangeLog) error
}

func newMockStateLogRepository() *mockStateLogRepository {
	return &mockStateLogRepository{}
}

func (m *mockStateLogRepository) Append(ctx context.Context, entry *model.StateChangeLog) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockStateLogRepository) ListByReservation(ctx context.Context, reservationID string) ([]*model.StateChangeLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.StateChangeLog
	for _, e := range m.entries {
		if e.ReservationID == reservationID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStateLogRepository) countFor(reservationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.ReservationID == reservationID {
			n++
		}
	}
	return n
}

type mockGate struct {
	mu    sync.Mutex
	calls int

	validateFunc func(ctx context.Context, shopID string, date time.Time, timeOfDay string, serviceIDs []string) (*model.SlotAvailability, error)
}

func (m *mockGate) Validate(ctx context.Context, shopID string, date time.Time, timeOfDay string, serviceIDs []string) (*model.SlotAvailability, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.validateFunc != nil {
		return m.validateFunc(ctx, shopID, date, timeOfDay, serviceIDs)
	}
	return &model.SlotAvailability{Available: true}, nil
}

type mockPayments struct {
	statusFunc func(ctx context.Context, reservationID string) (model.PaymentStatus, error)
}

func (m *mockPayments) GetPaymentStatus(ctx context.Context, reservationID string) (model.PaymentStatus, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, reservationID)
	}
	return model.PaymentFullyPaid, nil
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*model.TransitionEvent

	notifyFunc func(ctx context.Context, event *model.TransitionEvent) error
}

func (m *mockDispatcher) Notify(ctx context.Context, event *model.TransitionEvent) error {
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func newTestConfig() *config.Config {
	return &config.Config{
		CancelMinNoticeHours: 0,
		ShortNoticeHours:     2,
		NoShowGraceMinutes:   30,
		MaxRescheduleCount:   3,
		SlotLockTTL:          10 * time.Second,
		RetryMaxAttempts:     3,
		RetryBaseDelay:       50 * time.Millisecond,
		RetryMaxDelay:        time.Second,
		RetryDeadlockDelay:   120 * time.Millisecond,
		ReadTimeout:          5 * time.Second,
		WriteTimeout:         5 * time.Second,
		Log: logger.New(logger.Config{
			Level:     "error",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
	}
}
