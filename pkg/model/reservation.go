package model

import "time"

// Reservation is one member's seat in one session. A (member, session) pair
// holds at most one reservation.
type Reservation struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	MemberID  string    `json:"member_id" bson:"member_id" validate:"required,mongodb"`
	SessionID string    `json:"session_id" bson:"session_id" validate:"required,mongodb"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type ReserveRequest struct {
	MemberID  string `json:"member_id" validate:"required,mongodb"`
	SessionID string `json:"session_id" validate:"required,mongodb"`
}

type SessionAvailability struct {
	SessionID string `json:"session_id"`
	Capacity  int    `json:"capacity"`
	Reserved  int64  `json:"reserved"`
	Available int64  `json:"available"`
	IsFull    bool   `json:"is_full"`
}

func NewSessionAvailability(session *Session, reserved int64) SessionAvailability {
	available := max(int64(session.Capacity)-reserved, 0)
	return SessionAvailability{
		SessionID: session.ID,
		Capacity:  session.Capacity,
		Reserved:  reserved,
		Available: available,
		IsFull:    available == 0,
	}
}
