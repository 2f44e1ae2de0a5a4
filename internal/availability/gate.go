package availability

import (
	"context"
	"time"

	"slotbook/internal/reservations/repository"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

// Gate answers slot availability from the reservations store: a slot
// is free while no active (non-terminal) reservation occupies it.
// Callers treat the answer as advisory; the creation transaction
// re-checks under the slot lock.
type Gate struct {
	repo repository.ReservationRepository
	log  *logger.Logger
}

func NewGate(repo repository.ReservationRepository, log *logger.Logger) *Gate {
	return &Gate{
		repo: repo,
		log:  log,
	}
}

func (g *Gate) Validate(ctx context.Context, shopID string, date time.Time, timeOfDay string, serviceIDs []string) (*model.SlotAvailability, error) {
	active, err := g.repo.FindActiveOnSlot(ctx, shopID, date, timeOfDay)
	if err != nil {
		return nil, err
	}

	if len(active) == 0 {
		return &model.SlotAvailability{Available: true}, nil
	}

	ids := make([]string, 0, len(active))
	for _, r := range active {
		ids = append(ids, r.ID)
	}

	g.log.Debug("Slot unavailable",
		"shop_id", shopID,
		"date", date.Format(model.DateFormat),
		"time", timeOfDay,
		"conflicts", ids,
	)

	return &model.SlotAvailability{
		Available:                 false,
		ConflictReason:            "slot already holds an active reservation",
		ConflictingReservationIDs: ids,
	}, nil
}
