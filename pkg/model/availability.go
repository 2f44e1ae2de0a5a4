package model

// SlotAvailability is the answer from the availability gate for a
// (shop, date, time, services) request.
type SlotAvailability struct {
	Available                 bool     `json:"available"`
	ConflictReason            string   `json:"conflict_reason,omitempty"`
	ConflictingReservationIDs []string `json:"conflicting_reservation_ids,omitempty"`
}
