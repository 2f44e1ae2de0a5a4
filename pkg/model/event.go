package model

import "time"

// Event types published to the transitions topic.
const (
	EventTypeReservationCreated      = "reservation.created"
	EventTypeReservationTransitioned = "reservation.transitioned"
)

// TransitionEvent is the payload published after a committed status
// change (creation counts as the transition into the initial status).
// EventID is unique per committed transition so downstream consumers
// can deduplicate replays.
type TransitionEvent struct {
	EventID       string    `json:"event_id"`
	ReservationID string    `json:"reservation_id"`
	UserID        string    `json:"user_id"`
	ShopID        string    `json:"shop_id"`
	FromStatus    Status    `json:"from_status,omitempty"`
	ToStatus      Status    `json:"to_status"`
	ActorRole     Role      `json:"actor_role"`
	ActorID       string    `json:"actor_id"`
	Reason        string    `json:"reason,omitempty"`
	PointsUsed    int64     `json:"points_used"`
	PointsEarned  int64     `json:"points_earned"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Cancellation reports whether the event represents a move into a
// cancellation status, which is what the point ledger reacts to.
func (e *TransitionEvent) Cancellation() bool {
	return e.ToStatus.Cancellation()
}
