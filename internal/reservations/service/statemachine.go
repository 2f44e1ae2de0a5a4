package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	reserrors "slotbook/internal/reservations/errors"
	"slotbook/internal/reservations/repository"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// ValidationResult is the structured answer to a transition check.
// Business-rule violations are data here, never errors thrown at the
// caller.
type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	BusinessRules []string `json:"business_rules"`
}

// ExecutionResult reports a transition attempt. When validation
// refused the transition, Success is false and the validation lists
// say why.
type ExecutionResult struct {
	Success       bool               `json:"success"`
	Reservation   *model.Reservation `json:"reservation,omitempty"`
	Errors        []string           `json:"errors"`
	Warnings      []string           `json:"warnings"`
	BusinessRules []string           `json:"business_rules"`
}

// AutoProcessResult summarizes one automatic-progression sweep.
type AutoProcessResult struct {
	ProcessedCount int      `json:"processed_count"`
	Transitions    []string `json:"transitions"`
	Errors         []string `json:"errors"`
}

// AvailableTransitions lists the table edges reachable from the
// reservation's current status for a given role.
type AvailableTransitions struct {
	CurrentStatus model.Status           `json:"current_status"`
	Transitions   []model.TransitionRule `json:"transitions"`
}

// StateMachine owns the transition table and every status change a
// reservation goes through after creation.
type StateMachine interface {
	ValidateTransition(ctx context.Context, id string, from, to model.Status, actorRole model.Role, actorID, reason string) (*ValidationResult, error)
	ExecuteTransition(ctx context.Context, id string, to model.Status, actorRole model.Role, actorID, reason string, metadata map[string]any) (*ExecutionResult, error)
	ProcessAutomaticTransitions(ctx context.Context) (*AutoProcessResult, error)
	RollbackStateChange(ctx context.Context, id string, to model.Status, actorID, reason string) (*ExecutionResult, error)
	GetAvailableTransitions(ctx context.Context, id string, role model.Role) (*AvailableTransitions, error)
	GetStateChangeHistory(ctx context.Context, id string) ([]*model.StateChangeLog, error)
}

type stateMachine struct {
	repo       repository.ReservationRepository
	logRepo    repository.StateLogRepository
	payments   PaymentStatusProvider
	dispatcher NotificationDispatcher
	table      *model.TransitionTable
	cfg        *config.Config

	// injectable for tests
	now func() time.Time
}

func NewStateMachine(
	repo repository.ReservationRepository,
	logRepo repository.StateLogRepository,
	payments PaymentStatusProvider,
	dispatcher NotificationDispatcher,
	table *model.TransitionTable,
	cfg *config.Config,
) StateMachine {
	return &stateMachine{
		repo:       repo,
		logRepo:    logRepo,
		payments:   payments,
		dispatcher: dispatcher,
		table:      table,
		cfg:        cfg,
		now:        time.Now,
	}
}

// ValidateTransition checks a proposed transition without executing
// it. The from argument is what the caller observed; a mismatch with
// the stored status invalidates the request outright.
func (m *stateMachine) ValidateTransition(ctx context.Context, id string, from, to model.Status, actorRole model.Role, actorID, reason string) (*ValidationResult, error) {
	reservation, err := m.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if reservation.Status != from {
		return &ValidationResult{
			IsValid: false,
			Errors:  []string{fmt.Sprintf("reservation status is %s, not %s", reservation.Status, from)},
		}, nil
	}

	result := m.validate(ctx, reservation, to, actorRole, actorID, reason, false)
	return result, nil
}

// validate runs the ordered checks: table membership, actor
// authorization, reason requirement, then business-rule conditions.
// With override set (admin rollback), the table and condition checks
// are skipped; the override is recorded in the audit row instead.
func (m *stateMachine) validate(ctx context.Context, reservation *model.Reservation, to model.Status, actorRole model.Role, actorID, reason string, override bool) *ValidationResult {
	result := &ValidationResult{
		Errors:        []string{},
		Warnings:      []string{},
		BusinessRules: []string{},
	}

	var rule model.TransitionRule
	if !override {
		var ok bool
		rule, ok = m.table.Find(reservation.Status, to)
		if !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("transition from %s to %s is not allowed", reservation.Status, to))
			return result
		}
	}

	if authErr := m.authorize(reservation, rule, actorRole, actorID, override); authErr != "" {
		result.Errors = append(result.Errors, authErr)
		return result
	}

	requiresReason := rule.RequiresReason || override
	if requiresReason && reason == "" {
		result.Errors = append(result.Errors,
			fmt.Sprintf("a reason is required to transition to %s", to))
		return result
	}

	if !override {
		m.checkConditions(ctx, reservation, to, rule, result)
	}

	result.IsValid = len(result.Errors) == 0 && len(result.BusinessRules) == 0
	return result
}

func (m *stateMachine) authorize(reservation *model.Reservation, rule model.TransitionRule, actorRole model.Role, actorID string, override bool) string {
	if override {
		if actorRole != model.RoleAdmin {
			return "only admins may override the transition table"
		}
		return ""
	}

	if !rule.Allows(actorRole) {
		return fmt.Sprintf("role %s may not perform this transition", actorRole)
	}

	switch actorRole {
	case model.RoleUser:
		if actorID != reservation.UserID {
			return "user does not own this reservation"
		}
	case model.RoleShop:
		if actorID != reservation.ShopID {
			return "shop does not own this reservation"
		}
	}
	// Admin and system bypass ownership.

	return ""
}

// checkConditions evaluates the business-rule gates. Violations land
// in BusinessRules; soft thresholds land in Warnings.
func (m *stateMachine) checkConditions(ctx context.Context, reservation *model.Reservation, to model.Status, rule model.TransitionRule, result *ValidationResult) {
	if rule.Conditions.PaymentRequired {
		status, err := m.payments.GetPaymentStatus(ctx, reservation.ID)
		if err != nil {
			m.cfg.Log.Error("Payment status lookup failed",
				"reservation_id", reservation.ID,
				"error", err,
			)
			result.Errors = append(result.Errors, "payment status could not be determined")
		} else if !status.Settled() {
			result.BusinessRules = append(result.BusinessRules,
				fmt.Sprintf("payment must be fully settled, currently %s", status))
		}
	} else if to == model.StatusConfirmed {
		// Confirming an unpaid reservation is allowed but flagged.
		status, err := m.payments.GetPaymentStatus(ctx, reservation.ID)
		if err != nil {
			m.cfg.Log.Warn("Payment status lookup failed during confirmation",
				"reservation_id", reservation.ID,
				"error", err,
			)
		} else if !status.Settled() {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("payment is %s; confirming before full settlement", status))
		}
	}

	if rule.Conditions.MinHoursBeforeReservation != nil {
		now := m.now()
		startAt := reservation.StartAt()
		notice := startAt.Sub(now)
		minNotice := time.Duration(*rule.Conditions.MinHoursBeforeReservation) * time.Hour

		if notice < minNotice {
			result.BusinessRules = append(result.BusinessRules,
				fmt.Sprintf("at least %d hour(s) notice required before the reservation start", *rule.Conditions.MinHoursBeforeReservation))
		} else if notice < time.Duration(m.cfg.ShortNoticeHours)*time.Hour {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("short notice: less than %d hour(s) before the reservation start", m.cfg.ShortNoticeHours))
		}
	}

	if rule.Conditions.MaxRescheduleCount != nil {
		if reservation.RescheduleCount >= *rule.Conditions.MaxRescheduleCount {
			result.BusinessRules = append(result.BusinessRules,
				fmt.Sprintf("reschedule limit of %d reached", *rule.Conditions.MaxRescheduleCount))
		}
	}
}

// ExecuteTransition re-reads the reservation, re-validates against
// the fresh status, persists optimistically, and appends exactly one
// audit row in the same transaction. The notification is fired after
// commit, best effort.
func (m *stateMachine) ExecuteTransition(ctx context.Context, id string, to model.Status, actorRole model.Role, actorID, reason string, metadata map[string]any) (*ExecutionResult, error) {
	reason = sanitizer.SanitizeReason(reason)

	reservation, err := m.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	override := false
	if metadata != nil {
		v, ok := metadata[model.MetadataOverrideKey].(bool)
		override = ok && v
	}

	validation := m.validate(ctx, reservation, to, actorRole, actorID, reason, override)
	if !validation.IsValid {
		m.cfg.Log.Warn("Transition refused",
			"reservation_id", id,
			"from", reservation.Status,
			"to", to,
			"actor_role", actorRole,
			"actor_id", actorID,
			"errors", validation.Errors,
			"business_rules", validation.BusinessRules,
		)
		return &ExecutionResult{
			Success:       false,
			Errors:        validation.Errors,
			Warnings:      validation.Warnings,
			BusinessRules: validation.BusinessRules,
		}, nil
	}

	from := reservation.Status
	version := reservation.Version

	err = m.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := m.repo.UpdateStatus(sessCtx, id, from, to, version, reason); err != nil {
			return err
		}

		return m.logRepo.Append(sessCtx, &model.StateChangeLog{
			ReservationID: id,
			FromStatus:    from,
			ToStatus:      to,
			ActorRole:     actorRole,
			ActorID:       actorID,
			Reason:        reason,
			Metadata:      metadata,
		})
	})
	if err != nil {
		if errors.Is(err, reserrors.ErrStateConflict) {
			return nil, apperrors.StateConflict(
				fmt.Sprintf("Reservation %s changed concurrently; re-fetch and retry", id))
		}
		if errors.Is(err, reserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		m.cfg.Log.Error("Failed to execute transition",
			"reservation_id", id,
			"from", from,
			"to", to,
			"actor_role", actorRole,
			"actor_id", actorID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to execute transition", err)
	}

	reservation.Status = to
	reservation.Version = version + 1
	if reason != "" {
		reservation.Reason = reason
	}

	m.cfg.Log.Info("Transition executed",
		"reservation_id", id,
		"from", from,
		"to", to,
		"actor_role", actorRole,
		"actor_id", actorID,
		"override", override,
	)

	m.notifyTransition(ctx, reservation, from, to, actorRole, actorID, reason)

	return &ExecutionResult{
		Success:       true,
		Reservation:   reservation,
		Errors:        []string{},
		Warnings:      validation.Warnings,
		BusinessRules: []string{},
	}, nil
}

// ProcessAutomaticTransitions sweeps confirmed reservations whose
// start time plus the grace period has passed and drives each to
// no_show through the normal execution path. A reservation another
// actor already moved is skipped, not failed; one reservation's error
// does not abort the batch.
func (m *stateMachine) ProcessAutomaticTransitions(ctx context.Context) (*AutoProcessResult, error) {
	result := &AutoProcessResult{
		Transitions: []string{},
		Errors:      []string{},
	}

	now := m.now()
	grace := time.Duration(m.cfg.NoShowGraceMinutes) * time.Minute

	candidates, err := m.repo.FindConfirmedDueBy(ctx, now, autoScanBatchSize)
	if err != nil {
		return nil, apperrors.Internal("Failed to scan for overdue reservations", err)
	}

	for _, reservation := range candidates {
		if !reservation.StartAt().Add(grace).Before(now) {
			continue
		}

		execResult, err := m.ExecuteTransition(ctx, reservation.ID, model.StatusNoShow,
			model.RoleSystem, systemActorID, "", nil)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeStateConflict) || apperrors.HasCode(err, apperrors.CodeNotFound) {
				// Another actor moved it first; nothing to do.
				continue
			}
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: %v", reservation.ID, err))
			continue
		}
		if !execResult.Success {
			// Re-validation says the reservation left confirmed; skip.
			continue
		}

		result.ProcessedCount++
		result.Transitions = append(result.Transitions,
			fmt.Sprintf("%s: %s -> %s", reservation.ID, model.StatusConfirmed, model.StatusNoShow))
	}

	if result.ProcessedCount > 0 || len(result.Errors) > 0 {
		m.cfg.Log.Info("Automatic transition sweep finished",
			"processed", result.ProcessedCount,
			"errors", len(result.Errors),
		)
	}

	return result, nil
}

const (
	autoScanBatchSize = 500
	systemActorID     = "scheduler"
)

// RollbackStateChange is the admin-only escape hatch for erroneous
// transitions. The target must be on the whitelist; the executed
// transition bypasses the table but is tagged as an override in the
// audit row.
func (m *stateMachine) RollbackStateChange(ctx context.Context, id string, to model.Status, actorID, reason string) (*ExecutionResult, error) {
	if !RollbackTargets[to] {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Cannot rollback to status: %s", to))
	}

	metadata := map[string]any{
		model.MetadataOverrideKey: true,
	}

	return m.ExecuteTransition(ctx, id, to, model.RoleAdmin, actorID, reason, metadata)
}

// GetAvailableTransitions filters the table by the reservation's
// current status. System edges are included so callers can see
// automatic progressions alongside their own options.
func (m *stateMachine) GetAvailableTransitions(ctx context.Context, id string, role model.Role) (*AvailableTransitions, error) {
	reservation, err := m.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	var transitions []model.TransitionRule
	for _, rule := range m.table.From(reservation.Status) {
		if rule.Allows(role) || rule.Allows(model.RoleSystem) {
			transitions = append(transitions, rule)
		}
	}

	return &AvailableTransitions{
		CurrentStatus: reservation.Status,
		Transitions:   transitions,
	}, nil
}

// GetStateChangeHistory returns the audit trail oldest-first.
func (m *stateMachine) GetStateChangeHistory(ctx context.Context, id string) ([]*model.StateChangeLog, error) {
	if _, err := m.loadReservation(ctx, id); err != nil {
		return nil, err
	}

	history, err := m.logRepo.ListByReservation(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve state change history", err)
	}

	return history, nil
}

func (m *stateMachine) loadReservation(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := m.repo.FindByID(ctx, id)
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

func (m *stateMachine) notifyTransition(ctx context.Context, reservation *model.Reservation, from, to model.Status, actorRole model.Role, actorID, reason string) {
	if m.dispatcher == nil {
		return
	}

	event := &model.TransitionEvent{
		EventID:       uuid.New().String(),
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		ShopID:        reservation.ShopID,
		FromStatus:    from,
		ToStatus:      to,
		ActorRole:     actorRole,
		ActorID:       actorID,
		Reason:        reason,
		PointsUsed:    reservation.PointsUsed,
		PointsEarned:  reservation.PointsEarned,
		OccurredAt:    m.now().UTC(),
	}

	if err := m.dispatcher.Notify(ctx, event); err != nil {
		m.cfg.Log.Warn("Failed to dispatch transition notification",
			"reservation_id", reservation.ID,
			"from", from,
			"to", to,
			"error", err,
		)
	}
}
