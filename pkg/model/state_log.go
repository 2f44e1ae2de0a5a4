package model

import "time"

// MetadataOverrideKey marks a log row written by the admin rollback
// path. Rows carrying it are the only ones allowed to represent a
// transition absent from the table.
const MetadataOverrideKey = "override"

// StateChangeLog is one executed transition. Rows are append-only:
// never updated, never deleted.
type StateChangeLog struct {
	ID            string         `json:"id" bson:"_id"`
	ReservationID string         `json:"reservation_id" bson:"reservation_id"`
	FromStatus    Status         `json:"from_status" bson:"from_status"`
	ToStatus      Status         `json:"to_status" bson:"to_status"`
	ActorRole     Role           `json:"actor_role" bson:"actor_role"`
	ActorID       string         `json:"actor_id" bson:"actor_id"`
	Reason        string         `json:"reason,omitempty" bson:"reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
}

// IsOverride reports whether this row was written by the rollback path.
func (l *StateChangeLog) IsOverride() bool {
	if l.Metadata == nil {
		return false
	}
	v, ok := l.Metadata[MetadataOverrideKey].(bool)
	return ok && v
}
