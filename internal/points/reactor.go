package points

import (
	"context"

	"slotbook/pkg/kafka"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

// Reactor consumes transition events and adjusts the point ledger in
// reaction to cancellations: points the user spent come back, points
// the reservation would have earned are taken away. Everything else
// on the topic is acknowledged untouched.
type Reactor struct {
	ledger LedgerRepository
	log    *logger.Logger
}

func NewReactor(ledger LedgerRepository, log *logger.Logger) *Reactor {
	return &Reactor{
		ledger: ledger,
		log:    log,
	}
}

// Handle is the kafka message handler. Malformed payloads are
// permanent failures (DLQ material); ledger writes that fail are
// returned so the consumer's retry policy applies.
func (r *Reactor) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.TransitionEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("failed to decode transition event", err)
	}

	if event.EventID == "" {
		return kafka.NewPermanentError("transition event has no event_id", nil)
	}

	if !event.Cancellation() {
		return nil
	}

	if event.PointsUsed > 0 {
		applied, err := r.ledger.Append(ctx, &model.LedgerEntry{
			EventID:       event.EventID,
			ReservationID: event.ReservationID,
			UserID:        event.UserID,
			Kind:          model.LedgerRestoreUsed,
			Points:        event.PointsUsed,
		})
		if err != nil {
			return err
		}
		if !applied {
			r.log.Debug("Ledger entry already applied",
				"event_id", event.EventID,
				"kind", model.LedgerRestoreUsed,
			)
		}
	}

	if event.PointsEarned > 0 {
		applied, err := r.ledger.Append(ctx, &model.LedgerEntry{
			EventID:       event.EventID,
			ReservationID: event.ReservationID,
			UserID:        event.UserID,
			Kind:          model.LedgerReverseEarned,
			Points:        -event.PointsEarned,
		})
		if err != nil {
			return err
		}
		if !applied {
			r.log.Debug("Ledger entry already applied",
				"event_id", event.EventID,
				"kind", model.LedgerReverseEarned,
			)
		}
	}

	r.log.Info("Processed cancellation for point ledger",
		"event_id", event.EventID,
		"reservation_id", event.ReservationID,
		"user_id", event.UserID,
		"to_status", event.ToStatus,
	)

	return nil
}
