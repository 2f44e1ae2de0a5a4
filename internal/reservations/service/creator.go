package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	reserrors "slotbook/internal/reservations/errors"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/reservations/validator"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// ReservationService creates reservations and serves read queries.
// Status changes go through the state machine, never through here.
type ReservationService interface {
	Create(ctx context.Context, req *model.CreateReservationRequest) (*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error)
	GetByShopAndDate(ctx context.Context, shopID string, date time.Time, limit int, offset int64) ([]*model.Reservation, error)
}

type reservationService struct {
	repo       repository.ReservationRepository
	lockRepo   repository.SlotLockRepository
	logRepo    repository.StateLogRepository
	gate       SlotAvailabilityGate
	dispatcher NotificationDispatcher
	validator  *validator.ReservationValidator
	cfg        *config.Config

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.SlotLockRepository,
	logRepo repository.StateLogRepository,
	gate SlotAvailabilityGate,
	dispatcher NotificationDispatcher,
	v *validator.ReservationValidator,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:       repo,
		lockRepo:   lockRepo,
		logRepo:    logRepo,
		gate:       gate,
		dispatcher: dispatcher,
		validator:  v,
		cfg:        cfg,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Create runs the full creation pipeline: sanitize, validate, consult
// the availability gate, then perform the lock-scoped atomic insert
// with bounded retry on transient datastore failures. Validation and
// slot-conflict failures are never retried.
func (s *reservationService) Create(ctx context.Context, req *model.CreateReservationRequest) (*model.Reservation, error) {
	req.Notes = sanitizer.SanitizeNotes(req.Notes)

	date, err := s.validator.ValidateCreate(req)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, apperrors.Validation("Reservation request is invalid", map[string]any{
				"validation_errors": verrs,
			})
		}
		return nil, apperrors.Internal("Failed to validate reservation request", err)
	}

	reservation := s.buildReservation(req, date)

	if err := s.validator.ValidateStartNotPast(reservation.StartAt(), s.now()); err != nil {
		return nil, apperrors.Validation("Reservation request is invalid", map[string]any{
			"validation_errors": err,
		})
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryMaxAttempts; attempt++ {
		err := s.createAttempt(ctx, reservation, req.ServiceIDs())
		if err == nil {
			s.cfg.Log.Info("Reservation created successfully",
				"id", reservation.ID,
				"shop_id", reservation.ShopID,
				"user_id", reservation.UserID,
				"slot", reservation.SlotKey(),
				"attempt", attempt,
			)
			s.notifyCreated(ctx, reservation)
			return reservation, nil
		}

		if apperrors.IsAppError(err) {
			// Typed domain failures (validation, slot conflict) are final.
			return nil, err
		}

		lastErr = err
		kind := reserrors.Classify(err)
		if kind == reserrors.FailureNone || attempt == s.cfg.RetryMaxAttempts {
			break
		}

		delay := s.retryDelay(kind, attempt)
		s.cfg.Log.Warn("Transient failure creating reservation, retrying",
			"slot", reservation.SlotKey(),
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		s.sleep(delay)
	}

	s.cfg.Log.Error("Failed to create reservation",
		"slot", reservation.SlotKey(),
		"attempts", s.cfg.RetryMaxAttempts,
		"error", lastErr,
	)
	return nil, lastErr
}

func (s *reservationService) buildReservation(req *model.CreateReservationRequest, date time.Time) *model.Reservation {
	return &model.Reservation{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		ShopID:          req.ShopID,
		Services:        req.Services,
		ReservationDate: date,
		ReservationTime: req.ReservationTime,
		Status:          model.StatusRequested,
		TotalAmount:     req.TotalAmount,
		DepositAmount:   req.DepositAmount,
		RemainingAmount: req.TotalAmount - req.DepositAmount,
		PointsUsed:      req.PointsToUse,
		Notes:           req.Notes,
		Version:         1,
	}
}

// createAttempt is one pass of gate check, advisory lock, and the
// insert transaction. Errors that are *AppError are final; anything
// else is a candidate for the retry loop.
func (s *reservationService) createAttempt(ctx context.Context, reservation *model.Reservation, serviceIDs []string) error {
	availability, err := s.gate.Validate(ctx, reservation.ShopID, reservation.ReservationDate, reservation.ReservationTime, serviceIDs)
	if err != nil {
		return fmt.Errorf("availability check failed: %w", err)
	}
	if !availability.Available {
		return apperrors.SlotConflict(
			fmt.Sprintf("Slot is not available: %s", availability.ConflictReason),
			availability.ConflictingReservationIDs,
		)
	}

	slotKey := reservation.SlotKey()
	if _, err := s.lockRepo.Acquire(ctx, slotKey); err != nil {
		if errors.Is(err, reserrors.ErrSlotLocked) {
			return apperrors.SlotConflict("Slot is being booked by another request", nil)
		}
		return err
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(ctx, slotKey); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "slot", slotKey, "error", releaseErr)
		}
	}()

	return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		active, err := s.repo.FindActiveOnSlot(sessCtx, reservation.ShopID, reservation.ReservationDate, reservation.ReservationTime)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			ids := make([]string, 0, len(active))
			for _, r := range active {
				ids = append(ids, r.ID)
			}
			return apperrors.SlotConflict("Slot already holds an active reservation", ids)
		}

		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return err
		}

		// Creation is itself a transition into the initial status.
		return s.logRepo.Append(sessCtx, &model.StateChangeLog{
			ReservationID: reservation.ID,
			ToStatus:      model.StatusRequested,
			ActorRole:     model.RoleUser,
			ActorID:       reservation.UserID,
		})
	})
}

func (s *reservationService) retryDelay(kind reserrors.FailureKind, attempt int) time.Duration {
	if kind == reserrors.FailureDeadlock {
		// Fixed delay desynchronizes competing retriers.
		return s.cfg.RetryDeadlockDelay
	}

	delay := s.cfg.RetryBaseDelay << (attempt - 1)
	if delay > s.cfg.RetryMaxDelay {
		delay = s.cfg.RetryMaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(s.cfg.RetryBaseDelay)))
	return delay + jitter
}

func (s *reservationService) notifyCreated(ctx context.Context, reservation *model.Reservation) {
	if s.dispatcher == nil {
		return
	}

	event := &model.TransitionEvent{
		EventID:       uuid.New().String(),
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		ShopID:        reservation.ShopID,
		ToStatus:      model.StatusRequested,
		ActorRole:     model.RoleUser,
		ActorID:       reservation.UserID,
		PointsUsed:    reservation.PointsUsed,
		OccurredAt:    s.now().UTC(),
	}

	if err := s.dispatcher.Notify(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to dispatch creation notification",
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}

	return reservation, nil
}

func (s *reservationService) GetByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	reservations, err := s.repo.FindByUser(ctx, userID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations by user", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}

	return reservations, nil
}

func (s *reservationService) GetByShopAndDate(ctx context.Context, shopID string, date time.Time, limit int, offset int64) ([]*model.Reservation, error) {
	if shopID == "" {
		return nil, apperrors.InvalidInput("Shop ID cannot be empty")
	}

	reservations, err := s.repo.FindByShopAndDate(ctx, shopID, date, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations by shop", "shop_id", shopID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}

	return reservations, nil
}
