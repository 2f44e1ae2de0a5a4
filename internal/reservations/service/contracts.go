package service

import (
	"context"
	"time"

	"slotbook/pkg/model"
)

// SlotAvailabilityGate answers whether a slot can take another
// reservation. Consulted before the advisory lock is taken; the
// in-transaction duplicate check is the authoritative answer.
type SlotAvailabilityGate interface {
	Validate(ctx context.Context, shopID string, date time.Time, timeOfDay string, serviceIDs []string) (*model.SlotAvailability, error)
}

// PaymentStatusProvider reports the settlement state of a
// reservation's payment. Queried when a transition's conditions
// include a payment gate.
type PaymentStatusProvider interface {
	GetPaymentStatus(ctx context.Context, reservationID string) (model.PaymentStatus, error)
}

// NotificationDispatcher fires a best-effort notification for a
// committed transition. Failures are logged by the caller, never
// propagated as transition failures.
type NotificationDispatcher interface {
	Notify(ctx context.Context, event *model.TransitionEvent) error
}
