package model

import "time"

// SessionLock is an advisory lock document serializing writers that touch the
// same session or instructor timeline. Expired locks may be taken over.
type SessionLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	// Fence is bumped by each transaction that writes under the lock.
	Fence     int64     `bson:"fence,omitempty" json:"fence,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
