package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"slotbook/internal/reservations/validator"
	mongotx "slotbook/pkg/db/mongo"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

func newTestReservationService(
	repo *mockReservationRepository,
	lockRepo *mockSlotLockRepository,
	logRepo *mockStateLogRepository,
	gate *mockGate,
	dispatcher *mockDispatcher,
) *reservationService {
	cfg := newTestConfig()
	s := &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		logRepo:   logRepo,
		gate:      gate,
		validator: validator.NewReservationValidator(cfg.Log),
		cfg:       cfg,
		now:       time.Now,
		sleep:     func(time.Duration) {},
	}
	if dispatcher != nil {
		s.dispatcher = dispatcher
	}
	return s
}

func validCreateRequest() *model.CreateReservationRequest {
	date := time.Now().UTC().Add(72 * time.Hour)
	return &model.CreateReservationRequest{
		UserID:          "user-1",
		ShopID:          "shop-1",
		Services:        []model.ServiceLine{{ServiceID: "cut", Quantity: 1}},
		ReservationDate: date.Format(model.DateFormat),
		ReservationTime: "10:00",
		TotalAmount:     5000,
		DepositAmount:   1000,
	}
}

func TestCreate_Success(t *testing.T) {
	repo := newMockReservationRepository()
	logRepo := newMockStateLogRepository()
	dispatcher := &mockDispatcher{}
	service := newTestReservationService(repo, newMockSlotLockRepository(), logRepo, &mockGate{}, dispatcher)

	reservation, err := service.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if reservation.Status != model.StatusRequested {
		t.Errorf("expected status %s, got %s", model.StatusRequested, reservation.Status)
	}
	if reservation.Version != 1 {
		t.Errorf("expected version 1, got %d", reservation.Version)
	}
	if reservation.RemainingAmount != 4000 {
		t.Errorf("expected remaining amount 4000, got %d", reservation.RemainingAmount)
	}
	if logRepo.countFor(reservation.ID) != 1 {
		t.Errorf("expected 1 audit row, got %d", logRepo.countFor(reservation.ID))
	}
	if len(dispatcher.events) != 1 {
		t.Errorf("expected 1 creation event, got %d", len(dispatcher.events))
	}
}

func TestCreate_ValidationFailureShortCircuits(t *testing.T) {
	gate := &mockGate{}
	lockRepo := newMockSlotLockRepository()
	service := newTestReservationService(newMockReservationRepository(), lockRepo, newMockStateLogRepository(), gate, nil)

	req := validCreateRequest()
	req.ShopID = ""

	_, err := service.Create(context.Background(), req)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected %s, got %v", apperrors.CodeValidation, err)
	}
	if gate.calls != 0 {
		t.Errorf("availability gate should not be consulted on invalid input, got %d calls", gate.calls)
	}
	if lockRepo.locks != 0 {
		t.Errorf("no lock should be taken on invalid input, got %d", lockRepo.locks)
	}
}

func TestCreate_PastStartRejected(t *testing.T) {
	service := newTestReservationService(newMockReservationRepository(), newMockSlotLockRepository(), newMockStateLogRepository(), &mockGate{}, nil)

	req := validCreateRequest()
	req.ReservationDate = time.Now().UTC().Add(-48 * time.Hour).Format(model.DateFormat)

	_, err := service.Create(context.Background(), req)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected %s for past start, got %v", apperrors.CodeValidation, err)
	}
}

func TestCreate_SlotConflictIsNotRetried(t *testing.T) {
	gate := &mockGate{
		validateFunc: func(ctx context.Context, shopID string, date time.Time, timeOfDay string, serviceIDs []string) (*model.SlotAvailability, error) {
			return &model.SlotAvailability{
				Available:                 false,
				ConflictReason:            "slot already booked",
				ConflictingReservationIDs: []string{"existing-1"},
			}, nil
		},
	}
	service := newTestReservationService(newMockReservationRepository(), newMockSlotLockRepository(), newMockStateLogRepository(), gate, nil)

	_, err := service.Create(context.Background(), validCreateRequest())
	if !apperrors.HasCode(err, apperrors.CodeSlotConflict) {
		t.Fatalf("expected %s, got %v", apperrors.CodeSlotConflict, err)
	}
	if gate.calls != 1 {
		t.Errorf("slot conflict must not be retried, gate called %d times", gate.calls)
	}
}

func TestCreate_LockedSlotSurfacesConflict(t *testing.T) {
	lockRepo := newMockSlotLockRepository()
	req := validCreateRequest()
	date, _ := time.Parse(model.DateFormat, req.ReservationDate)
	if _, err := lockRepo.Acquire(context.Background(), model.SlotKey(req.ShopID, date, req.ReservationTime)); err != nil {
		t.Fatalf("seeding lock failed: %v", err)
	}

	service := newTestReservationService(newMockReservationRepository(), lockRepo, newMockStateLogRepository(), &mockGate{}, nil)

	_, err := service.Create(context.Background(), req)
	if !apperrors.HasCode(err, apperrors.CodeSlotConflict) {
		t.Fatalf("expected %s when lock is held, got %v", apperrors.CodeSlotConflict, err)
	}
}

func TestCreate_TransientFailureRetriesUpToLimit(t *testing.T) {
	attempts := 0
	txErr := fmt.Errorf("commit aborted: %w", context.DeadlineExceeded)

	repo := newMockReservationRepository()
	repo.executeTransactionFunc = func(ctx context.Context, fn mongotx.TransactionFunc) error {
		attempts++
		return txErr
	}

	var delays []time.Duration
	service := newTestReservationService(repo, newMockSlotLockRepository(), newMockStateLogRepository(), &mockGate{}, nil)
	service.sleep = func(d time.Duration) { delays = append(delays, d) }

	_, err := service.Create(context.Background(), validCreateRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the last underlying error, got %v", err)
	}
	if attempts != service.cfg.RetryMaxAttempts {
		t.Errorf("expected %d attempts, got %d", service.cfg.RetryMaxAttempts, attempts)
	}
	if len(delays) != service.cfg.RetryMaxAttempts-1 {
		t.Errorf("expected %d backoff sleeps, got %d", service.cfg.RetryMaxAttempts-1, len(delays))
	}
}

func TestCreate_DeadlockUsesFixedDelay(t *testing.T) {
	repo := newMockReservationRepository()
	repo.executeTransactionFunc = func(ctx context.Context, fn mongotx.TransactionFunc) error {
		return fmt.Errorf("tx failed: %w", mongo.CommandError{Code: 112, Message: "WriteConflict"})
	}

	var delays []time.Duration
	service := newTestReservationService(repo, newMockSlotLockRepository(), newMockStateLogRepository(), &mockGate{}, nil)
	service.sleep = func(d time.Duration) { delays = append(delays, d) }

	if _, err := service.Create(context.Background(), validCreateRequest()); err == nil {
		t.Fatal("expected failure after exhausting retries")
	}

	for i, d := range delays {
		if d != service.cfg.RetryDeadlockDelay {
			t.Errorf("delay %d: expected fixed %s on deadlock, got %s", i, service.cfg.RetryDeadlockDelay, d)
		}
	}
}

func TestCreate_NonTransientFailureNotRetried(t *testing.T) {
	attempts := 0
	repo := newMockReservationRepository()
	repo.executeTransactionFunc = func(ctx context.Context, fn mongotx.TransactionFunc) error {
		attempts++
		return errors.New("document failed validation")
	}

	service := newTestReservationService(repo, newMockSlotLockRepository(), newMockStateLogRepository(), &mockGate{}, nil)

	if _, err := service.Create(context.Background(), validCreateRequest()); err == nil {
		t.Fatal("expected error to surface")
	}
	if attempts != 1 {
		t.Errorf("non-transient failures must not be retried, got %d attempts", attempts)
	}
}

func TestCreate_ConcurrentCreatorsSingleWinner(t *testing.T) {
	const concurrency = 8

	repo := newMockReservationRepository()
	lockRepo := newMockSlotLockRepository()
	logRepo := newMockStateLogRepository()
	gate := &mockGate{
		validateFunc: func(ctx context.Context, shopID string, date time.Time, timeOfDay string, serviceIDs []string) (*model.SlotAvailability, error) {
			active, _ := repo.FindActiveOnSlot(ctx, shopID, date, timeOfDay)
			if len(active) > 0 {
				return &model.SlotAvailability{Available: false, ConflictReason: "slot already booked"}, nil
			}
			return &model.SlotAvailability{Available: true}, nil
		},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			service := newTestReservationService(repo, lockRepo, logRepo, gate, nil)
			req := validCreateRequest()
			req.UserID = fmt.Sprintf("user-%d", n)

			_, err := service.Create(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.HasCode(err, apperrors.CodeSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 winner, got %d", successes)
	}
	if conflicts != concurrency-1 {
		t.Errorf("expected %d slot conflicts, got %d", concurrency-1, conflicts)
	}

	count, _ := repo.Count(context.Background())
	if count != 1 {
		t.Errorf("expected 1 stored reservation, got %d", count)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	service := newTestReservationService(newMockReservationRepository(), newMockSlotLockRepository(), newMockStateLogRepository(), &mockGate{}, nil)

	_, err := service.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected %s, got %v", apperrors.CodeNotFound, err)
	}
}

func TestGetByID_EmptyID(t *testing.T) {
	service := newTestReservationService(newMockReservationRepository(), newMockSlotLockRepository(), newMockStateLogRepository(), &mockGate{}, nil)

	_, err := service.GetByID(context.Background(), "")
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected %s, got %v", apperrors.CodeInvalidInput, err)
	}
}
