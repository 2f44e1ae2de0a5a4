package model

import "time"

// SlotLock is an advisory lock serializing reservation creation per
// (shop, date, time) slot. The unique _id insert is the mutual
// exclusion; expires_at lets abandoned locks age out via TTL index.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
