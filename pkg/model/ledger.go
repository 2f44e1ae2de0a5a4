package model

import "time"

// LedgerEntryKind says what a point ledger entry does to a user's
// balance in reaction to a cancellation.
type LedgerEntryKind string

const (
	// LedgerReverseEarned takes back points the reservation would have
	// granted on completion.
	LedgerReverseEarned LedgerEntryKind = "reverse_earned"

	// LedgerRestoreUsed gives back points the user spent on the
	// deposit.
	LedgerRestoreUsed LedgerEntryKind = "restore_used"
)

// LedgerEntry is one append-only point adjustment. EventID carries the
// id of the transition event that caused it; a unique index on it
// makes reprocessing the same event a no-op.
type LedgerEntry struct {
	ID            string          `json:"id,omitempty" bson:"_id,omitempty"`
	EventID       string          `json:"event_id" bson:"event_id"`
	ReservationID string          `json:"reservation_id" bson:"reservation_id"`
	UserID        string          `json:"user_id" bson:"user_id"`
	Kind          LedgerEntryKind `json:"kind" bson:"kind"`
	Points        int64           `json:"points" bson:"points"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
}
