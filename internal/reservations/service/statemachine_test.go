package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
)

var testClock = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStateMachine(
	repo *mockReservationRepository,
	logRepo *mockStateLogRepository,
	payments *mockPayments,
	dispatcher *mockDispatcher,
) *stateMachine {
	cfg := newTestConfig()
	m := &stateMachine{
		repo:     repo,
		logRepo:  logRepo,
		payments: payments,
		table:    DefaultTransitionTable(cfg),
		cfg:      cfg,
		now:      func() time.Time { return testClock },
	}
	if dispatcher != nil {
		m.dispatcher = dispatcher
	}
	return m
}

func seedReservation(repo *mockReservationRepository, id string, status model.Status, date time.Time, timeOfDay string) *model.Reservation {
	r := &model.Reservation{
		ID:              id,
		UserID:          "user-1",
		ShopID:          "shop-1",
		Services:        []model.ServiceLine{{ServiceID: "cut", Quantity: 1}},
		ReservationDate: time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		ReservationTime: timeOfDay,
		Status:          status,
		TotalAmount:     5000,
		DepositAmount:   1000,
		RemainingAmount: 4000,
		Version:         1,
	}
	repo.put(r)
	return r
}

func allStatuses() []model.Status {
	return []model.Status{
		model.StatusRequested,
		model.StatusConfirmed,
		model.StatusCompleted,
		model.StatusCancelledByUser,
		model.StatusCancelledByShop,
		model.StatusNoShow,
	}
}

// The admin role is allowed on every table edge, so with a reason,
// settled payment, and generous notice the matrix reduces to exact
// table membership.
func TestValidateTransition_TableMatrix(t *testing.T) {
	cfg := newTestConfig()
	table := DefaultTransitionTable(cfg)
	futureDate := testClock.Add(96 * time.Hour)

	for _, from := range allStatuses() {
		for _, to := range allStatuses() {
			if from == to {
				continue
			}

			repo := newMockReservationRepository()
			seedReservation(repo, "res-matrix", from, futureDate, "10:00")
			machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

			result, err := machine.ValidateTransition(context.Background(), "res-matrix", from, to,
				model.RoleAdmin, "admin-1", "matrix check")
			if err != nil {
				t.Fatalf("%s -> %s: unexpected error: %v", from, to, err)
			}

			_, inTable := table.Find(from, to)
			if result.IsValid != inTable {
				t.Errorf("%s -> %s: expected valid=%v, got %v (errors: %v, rules: %v)",
					from, to, inTable, result.IsValid, result.Errors, result.BusinessRules)
			}
		}
	}
}

func TestValidateTransition_RequestedToCompletedRefusedForAllRoles(t *testing.T) {
	for _, role := range []model.Role{model.RoleUser, model.RoleShop, model.RoleAdmin, model.RoleSystem} {
		repo := newMockReservationRepository()
		seedReservation(repo, "res-1", model.StatusRequested, testClock.Add(48*time.Hour), "10:00")
		machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

		result, err := machine.ValidateTransition(context.Background(), "res-1",
			model.StatusRequested, model.StatusCompleted, role, "actor-1", "skip confirmation")
		if err != nil {
			t.Fatalf("role %s: unexpected error: %v", role, err)
		}
		if result.IsValid {
			t.Errorf("role %s: requested -> completed must never validate", role)
		}
	}
}

func TestValidateTransition_ObservedStatusMismatch(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock.Add(48*time.Hour), "10:00")
	machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

	result, err := machine.ValidateTransition(context.Background(), "res-1",
		model.StatusRequested, model.StatusConfirmed, model.RoleShop, "shop-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsValid {
		t.Error("validation must fail when the observed status is stale")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
}

func TestValidateTransition_ConfirmFullyPaid(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusRequested, testClock.Add(48*time.Hour), "10:00")
	machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

	result, err := machine.ValidateTransition(context.Background(), "res-1",
		model.StatusRequested, model.StatusConfirmed, model.RoleShop, "shop-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("expected valid, got errors %v, rules %v", result.Errors, result.BusinessRules)
	}
	if len(result.Errors) != 0 || len(result.Warnings) != 0 {
		t.Errorf("expected empty errors and warnings, got %v / %v", result.Errors, result.Warnings)
	}
}

func TestValidateTransition_ConfirmUnpaidWarnsButPasses(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusRequested, testClock.Add(48*time.Hour), "10:00")
	payments := &mockPayments{
		statusFunc: func(ctx context.Context, reservationID string) (model.PaymentStatus, error) {
			return model.PaymentPending, nil
		},
	}
	machine := newTestStateMachine(repo, newMockStateLogRepository(), payments, nil)

	result, err := machine.ValidateTransition(context.Background(), "res-1",
		model.StatusRequested, model.StatusConfirmed, model.RoleShop, "shop-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("unpaid confirmation should pass with a warning, got errors %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", result.Warnings)
	}
}

func TestValidateTransition_CompleteUnpaidViolatesBusinessRule(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock.Add(48*time.Hour), "10:00")
	payments := &mockPayments{
		statusFunc: func(ctx context.Context, reservationID string) (model.PaymentStatus, error) {
			return model.PaymentPartiallyPaid, nil
		},
	}
	machine := newTestStateMachine(repo, newMockStateLogRepository(), payments, nil)

	result, err := machine.ValidateTransition(context.Background(), "res-1",
		model.StatusConfirmed, model.StatusCompleted, model.RoleShop, "shop-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsValid {
		t.Error("completion with unsettled payment must not validate")
	}
	if len(result.BusinessRules) != 1 {
		t.Errorf("expected 1 business rule violation, got %v", result.BusinessRules)
	}
	if len(result.Errors) != 0 {
		t.Errorf("business rule violations are not errors, got %v", result.Errors)
	}
}

func TestValidateTransition_PaymentLookupFailure(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock.Add(48*time.Hour), "10:00")
	payments := &mockPayments{
		statusFunc: func(ctx context.Context, reservationID string) (model.PaymentStatus, error) {
			return "", errors.New("payment service down")
		},
	}
	machine := newTestStateMachine(repo, newMockStateLogRepository(), payments, nil)

	result, err := machine.ValidateTransition(context.Background(), "res-1",
		model.StatusConfirmed, model.StatusCompleted, model.RoleShop, "shop-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsValid {
		t.Error("completion must not validate when payment status is unknown")
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", result.Errors)
	}
}

func TestValidateTransition_ShortNoticeCancellation(t *testing.T) {
	repo := newMockReservationRepository()
	// Starts one hour from the pinned clock.
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock, "13:00")
	machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

	result, err := machine.ValidateTransition(context.Background(), "res-1",
		model.StatusConfirmed, model.StatusCancelledByUser, model.RoleUser, "user-1", "schedule conflict")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("short-notice cancellation should pass under a zero minimum, got errors %v, rules %v",
			result.Errors, result.BusinessRules)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected a short-notice warning, got %v", result.Warnings)
	}
}

func TestValidateTransition_CancellationInsideMinimumNotice(t *testing.T) {
	cfg := newTestConfig()
	cfg.CancelMinNoticeHours = 24
	cfg.ShortNoticeHours = 24

	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock, "13:00")
	machine := &stateMachine{
		repo:     repo,
		logRepo:  newMockStateLogRepository(),
		payments: &mockPayments{},
		table:    DefaultTransitionTable(cfg),
		cfg:      cfg,
		now:      func() time.Time { return testClock },
	}

	result, err := machine.ValidateTransition(context.Background(), "res-1",
		model.StatusConfirmed, model.StatusCancelledByUser, model.RoleUser, "user-1", "schedule conflict")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsValid {
		t.Error("cancellation inside the minimum notice window must not validate")
	}
	if len(result.BusinessRules) != 1 {
		t.Errorf("expected 1 business rule violation, got %v", result.BusinessRules)
	}
}

func TestValidateTransition_RescheduleLimit(t *testing.T) {
	cfg := newTestConfig()
	maxReschedules := cfg.MaxRescheduleCount
	table := model.NewTransitionTable([]model.TransitionRule{
		{
			From:      model.StatusConfirmed,
			To:        model.StatusRequested,
			AllowedBy: []model.Role{model.RoleUser},
			Conditions: model.TransitionConditions{
				MaxRescheduleCount: &maxReschedules,
			},
		},
	})

	tests := []struct {
		name            string
		rescheduleCount int
		wantValid       bool
	}{
		{
			name:            "below the cap",
			rescheduleCount: maxReschedules - 1,
			wantValid:       true,
		},
		{
			name:            "at the cap",
			rescheduleCount: maxReschedules,
			wantValid:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockReservationRepository()
			r := seedReservation(repo, "res-1", model.StatusConfirmed, testClock.Add(48*time.Hour), "10:00")
			r.RescheduleCount = tt.rescheduleCount
			repo.put(r)

			machine := &stateMachine{
				repo:     repo,
				logRepo:  newMockStateLogRepository(),
				payments: &mockPayments{},
				table:    table,
				cfg:      cfg,
				now:      func() time.Time { return testClock },
			}

			result, err := machine.ValidateTransition(context.Background(), "res-1",
				model.StatusConfirmed, model.StatusRequested, model.RoleUser, "user-1", "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsValid != tt.wantValid {
				t.Errorf("expected valid=%v, got %v (rules: %v)", tt.wantValid, result.IsValid, result.BusinessRules)
			}
			if !tt.wantValid && len(result.BusinessRules) != 1 {
				t.Errorf("expected 1 business rule violation, got %v", result.BusinessRules)
			}
		})
	}
}

func TestValidateTransition_CancellationRequiresReason(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock.Add(48*time.Hour), "10:00")
	machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

	result, err := machine.ValidateTransition(context.Background(), "res-1",
		model.StatusConfirmed, model.StatusCancelledByUser, model.RoleUser, "user-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsValid {
		t.Error("cancellation without a reason must not validate")
	}
}

func TestValidateTransition_Ownership(t *testing.T) {
	tests := []struct {
		name    string
		to      model.Status
		role    model.Role
		actorID string
	}{
		{"user cancelling another user's reservation", model.StatusCancelledByUser, model.RoleUser, "user-2"},
		{"shop confirming another shop's reservation", model.StatusConfirmed, model.RoleShop, "shop-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockReservationRepository()
			seedReservation(repo, "res-1", model.StatusRequested, testClock.Add(48*time.Hour), "10:00")
			machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

			result, err := machine.ValidateTransition(context.Background(), "res-1",
				model.StatusRequested, tt.to, tt.role, tt.actorID, "some reason")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsValid {
				t.Error("non-owner must not pass authorization")
			}
		})
	}
}

func TestExecuteTransition_Success(t *testing.T) {
	repo := newMockReservationRepository()
	logRepo := newMockStateLogRepository()
	dispatcher := &mockDispatcher{}
	seedReservation(repo, "res-1", model.StatusRequested, testClock.Add(48*time.Hour), "10:00")
	machine := newTestStateMachine(repo, logRepo, &mockPayments{}, dispatcher)

	result, err := machine.ExecuteTransition(context.Background(), "res-1",
		model.StatusConfirmed, model.RoleShop, "shop-1", "", nil)
	if err != nil {
		t.Fatalf("ExecuteTransition failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got errors %v, rules %v", result.Errors, result.BusinessRules)
	}
	if result.Reservation.Status != model.StatusConfirmed {
		t.Errorf("expected status %s, got %s", model.StatusConfirmed, result.Reservation.Status)
	}
	if result.Reservation.Version != 2 {
		t.Errorf("expected version bump to 2, got %d", result.Reservation.Version)
	}

	stored, _ := repo.FindByID(context.Background(), "res-1")
	if stored.Status != model.StatusConfirmed {
		t.Errorf("stored status not updated, got %s", stored.Status)
	}
	if logRepo.countFor("res-1") != 1 {
		t.Errorf("expected exactly 1 audit row, got %d", logRepo.countFor("res-1"))
	}
	if len(dispatcher.events) != 1 {
		t.Errorf("expected 1 transition event, got %d", len(dispatcher.events))
	}
}

func TestExecuteTransition_RefusalIsNotAnError(t *testing.T) {
	repo := newMockReservationRepository()
	logRepo := newMockStateLogRepository()
	seedReservation(repo, "res-1", model.StatusRequested, testClock.Add(48*time.Hour), "10:00")
	machine := newTestStateMachine(repo, logRepo, &mockPayments{}, nil)

	result, err := machine.ExecuteTransition(context.Background(), "res-1",
		model.StatusNoShow, model.RoleShop, "shop-1", "", nil)
	if err != nil {
		t.Fatalf("refused transitions must not surface as errors: %v", err)
	}
	if result.Success {
		t.Fatal("requested -> no_show must be refused")
	}
	if logRepo.countFor("res-1") != 0 {
		t.Errorf("refused transitions must not write audit rows, got %d", logRepo.countFor("res-1"))
	}

	stored, _ := repo.FindByID(context.Background(), "res-1")
	if stored.Status != model.StatusRequested {
		t.Errorf("refused transition must not change status, got %s", stored.Status)
	}
}

func TestExecuteTransition_NotFound(t *testing.T) {
	machine := newTestStateMachine(newMockReservationRepository(), newMockStateLogRepository(), &mockPayments{}, nil)

	_, err := machine.ExecuteTransition(context.Background(), "res-missing",
		model.StatusConfirmed, model.RoleShop, "shop-1", "", nil)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected %s, got %v", apperrors.CodeNotFound, err)
	}
}

func TestExecuteTransition_NotificationFailureDoesNotFailTransition(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusRequested, testClock.Add(48*time.Hour), "10:00")
	dispatcher := &mockDispatcher{
		notifyFunc: func(ctx context.Context, event *model.TransitionEvent) error {
			return errors.New("broker unreachable")
		},
	}
	machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, dispatcher)

	result, err := machine.ExecuteTransition(context.Background(), "res-1",
		model.StatusConfirmed, model.RoleShop, "shop-1", "", nil)
	if err != nil {
		t.Fatalf("notification failure must not fail the transition: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success despite notification failure")
	}
}

func TestExecuteTransition_ConcurrentSingleWinner(t *testing.T) {
	repo := newMockReservationRepository()
	logRepo := newMockStateLogRepository()
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock.Add(48*time.Hour), "10:00")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0

	run := func(to model.Status, role model.Role, actorID, reason string) {
		defer wg.Done()
		machine := newTestStateMachine(repo, logRepo, &mockPayments{}, nil)
		result, err := machine.ExecuteTransition(context.Background(), "res-1", to, role, actorID, reason, nil)
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil && result.Success:
			successes++
		case apperrors.HasCode(err, apperrors.CodeStateConflict):
			conflicts++
		case err == nil && !result.Success:
			// Re-validation saw the winner's status; also a clean loss.
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Add(2)
	go run(model.StatusCompleted, model.RoleShop, "shop-1", "")
	go run(model.StatusCancelledByShop, model.RoleShop, "shop-1", "equipment failure")
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 winner, got %d", successes)
	}
	if conflicts != 1 {
		t.Errorf("expected exactly 1 conflict, got %d", conflicts)
	}
	if logRepo.countFor("res-1") != 1 {
		t.Errorf("expected exactly 1 audit row, got %d", logRepo.countFor("res-1"))
	}
}

func TestProcessAutomaticTransitions(t *testing.T) {
	repo := newMockReservationRepository()
	logRepo := newMockStateLogRepository()
	machine := newTestStateMachine(repo, logRepo, &mockPayments{}, nil)

	// Three hours past start, well beyond the 30 minute grace.
	seedReservation(repo, "res-overdue", model.StatusConfirmed, testClock, "09:00")
	// Fifteen minutes past start, inside the grace period.
	seedReservation(repo, "res-grace", model.StatusConfirmed, testClock, "11:45")
	// Still in the future.
	seedReservation(repo, "res-future", model.StatusConfirmed, testClock.Add(48*time.Hour), "10:00")
	// Requested reservations never no-show.
	seedReservation(repo, "res-requested", model.StatusRequested, testClock, "08:00")

	result, err := machine.ProcessAutomaticTransitions(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.ProcessedCount != 1 {
		t.Fatalf("expected 1 processed, got %d (transitions: %v, errors: %v)",
			result.ProcessedCount, result.Transitions, result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}

	overdue, _ := repo.FindByID(context.Background(), "res-overdue")
	if overdue.Status != model.StatusNoShow {
		t.Errorf("expected no_show, got %s", overdue.Status)
	}
	grace, _ := repo.FindByID(context.Background(), "res-grace")
	if grace.Status != model.StatusConfirmed {
		t.Errorf("reservation inside grace must stay confirmed, got %s", grace.Status)
	}
	if logRepo.countFor("res-overdue") != 1 {
		t.Errorf("expected 1 audit row for the no-show, got %d", logRepo.countFor("res-overdue"))
	}

	// A second sweep finds nothing left to do.
	again, err := machine.ProcessAutomaticTransitions(context.Background())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again.ProcessedCount != 0 {
		t.Errorf("second sweep should process 0, got %d", again.ProcessedCount)
	}
	if logRepo.countFor("res-overdue") != 1 {
		t.Errorf("second sweep must not add audit rows, got %d", logRepo.countFor("res-overdue"))
	}
}

func TestProcessAutomaticTransitions_SkipsConcurrentlyMoved(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock, "09:00")

	// The sweep's candidate list is stale: the reservation moved after the scan.
	repo.findConfirmedDueByFunc = func(ctx context.Context, dateCutoff time.Time, limit int) ([]*model.Reservation, error) {
		stale := &model.Reservation{
			ID:              "res-1",
			UserID:          "user-1",
			ShopID:          "shop-1",
			ReservationDate: time.Date(testClock.Year(), testClock.Month(), testClock.Day(), 0, 0, 0, 0, time.UTC),
			ReservationTime: "09:00",
			Status:          model.StatusConfirmed,
			Version:         1,
		}
		repo.mu.Lock()
		repo.store["res-1"].Status = model.StatusCompleted
		repo.mu.Unlock()
		return []*model.Reservation{stale}, nil
	}

	machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

	result, err := machine.ProcessAutomaticTransitions(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.ProcessedCount != 0 {
		t.Errorf("moved reservation must be skipped, got %d processed", result.ProcessedCount)
	}
	if len(result.Errors) != 0 {
		t.Errorf("skips are not errors, got %v", result.Errors)
	}
}

func TestRollback_RefusesNonWhitelistedTarget(t *testing.T) {
	for _, to := range []model.Status{
		model.StatusCompleted,
		model.StatusCancelledByUser,
		model.StatusCancelledByShop,
		model.StatusNoShow,
	} {
		machine := newTestStateMachine(newMockReservationRepository(), newMockStateLogRepository(), &mockPayments{}, nil)

		_, err := machine.RollbackStateChange(context.Background(), "res-1", to, "admin-1", "undo mistake")
		if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			t.Fatalf("rollback to %s: expected %s, got %v", to, apperrors.CodeInvalidInput, err)
		}

		appErr := apperrors.AsAppError(err)
		want := fmt.Sprintf("Cannot rollback to status: %s", to)
		if appErr.Message != want {
			t.Errorf("expected message %q, got %q", want, appErr.Message)
		}
	}
}

func TestRollback_RestoresFromTerminalStatus(t *testing.T) {
	repo := newMockReservationRepository()
	logRepo := newMockStateLogRepository()
	seedReservation(repo, "res-1", model.StatusNoShow, testClock.Add(-24*time.Hour), "10:00")
	machine := newTestStateMachine(repo, logRepo, &mockPayments{}, nil)

	result, err := machine.RollbackStateChange(context.Background(), "res-1",
		model.StatusConfirmed, "admin-1", "marked no-show in error")
	if err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got errors %v", result.Errors)
	}

	stored, _ := repo.FindByID(context.Background(), "res-1")
	if stored.Status != model.StatusConfirmed {
		t.Errorf("expected status %s, got %s", model.StatusConfirmed, stored.Status)
	}

	rows, _ := logRepo.ListByReservation(context.Background(), "res-1")
	if len(rows) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(rows))
	}
	if !rows[0].IsOverride() {
		t.Error("rollback audit row must carry the override marker")
	}
	if rows[0].ActorRole != model.RoleAdmin {
		t.Errorf("expected actor role %s, got %s", model.RoleAdmin, rows[0].ActorRole)
	}
}

func TestRollback_RequiresReason(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusNoShow, testClock.Add(-24*time.Hour), "10:00")
	machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

	result, err := machine.RollbackStateChange(context.Background(), "res-1",
		model.StatusConfirmed, "admin-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("rollback without a reason must be refused")
	}
}

func TestGetAvailableTransitions(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock.Add(48*time.Hour), "10:00")
	machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

	available, err := machine.GetAvailableTransitions(context.Background(), "res-1", model.RoleUser)
	if err != nil {
		t.Fatalf("GetAvailableTransitions failed: %v", err)
	}
	if available.CurrentStatus != model.StatusConfirmed {
		t.Errorf("expected current status %s, got %s", model.StatusConfirmed, available.CurrentStatus)
	}

	targets := make(map[model.Status]bool)
	for _, rule := range available.Transitions {
		targets[rule.To] = true
	}
	if !targets[model.StatusCancelledByUser] {
		t.Error("user should see their own cancellation edge")
	}
	if !targets[model.StatusNoShow] {
		t.Error("system edges should be visible to every role")
	}
	if targets[model.StatusCancelledByShop] {
		t.Error("user should not see the shop-only cancellation edge")
	}

	// Listing is read-only: a second call returns the same set.
	again, err := machine.GetAvailableTransitions(context.Background(), "res-1", model.RoleUser)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if len(again.Transitions) != len(available.Transitions) {
		t.Errorf("expected %d transitions on repeat, got %d", len(available.Transitions), len(again.Transitions))
	}
}

func TestGetAvailableTransitions_TerminalStatus(t *testing.T) {
	repo := newMockReservationRepository()
	seedReservation(repo, "res-1", model.StatusCompleted, testClock.Add(-24*time.Hour), "10:00")
	machine := newTestStateMachine(repo, newMockStateLogRepository(), &mockPayments{}, nil)

	available, err := machine.GetAvailableTransitions(context.Background(), "res-1", model.RoleAdmin)
	if err != nil {
		t.Fatalf("GetAvailableTransitions failed: %v", err)
	}
	if len(available.Transitions) != 0 {
		t.Errorf("terminal status has no table edges, got %v", available.Transitions)
	}
}

func TestGetStateChangeHistory(t *testing.T) {
	repo := newMockReservationRepository()
	logRepo := newMockStateLogRepository()
	seedReservation(repo, "res-1", model.StatusConfirmed, testClock.Add(48*time.Hour), "10:00")
	machine := newTestStateMachine(repo, logRepo, &mockPayments{}, nil)

	logRepo.Append(context.Background(), &model.StateChangeLog{
		ReservationID: "res-1",
		ToStatus:      model.StatusRequested,
		ActorRole:     model.RoleUser,
	})
	logRepo.Append(context.Background(), &model.StateChangeLog{
		ReservationID: "res-1",
		FromStatus:    model.StatusRequested,
		ToStatus:      model.StatusConfirmed,
		ActorRole:     model.RoleShop,
	})

	history, err := machine.GetStateChangeHistory(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("GetStateChangeHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(history))
	}
	if history[0].ToStatus != model.StatusRequested || history[1].ToStatus != model.StatusConfirmed {
		t.Error("history must be ordered oldest first")
	}
}

func TestDefaultTransitionTable_NoOutgoingEdgesFromTerminal(t *testing.T) {
	table := DefaultTransitionTable(newTestConfig())
	for _, status := range model.TerminalStatuses {
		if edges := table.From(status); len(edges) != 0 {
			t.Errorf("terminal status %s has outgoing edges: %v", status, edges)
		}
	}
}
