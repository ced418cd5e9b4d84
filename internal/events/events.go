package events

import (
	"context"
	"time"

	"fitbook/pkg/model"
)

const (
	TypeSessionCreated      = "session.created"
	TypeSessionUpdated      = "session.updated"
	TypeSessionDeleted      = "session.deleted"
	TypeReservationCreated  = "reservation.created"
	TypeReservationCanceled = "reservation.cancelled"

	SchemaVersion = "1"
)

// Event is the payload published after a catalog or admission change commits.
type Event struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id"`
	InstructorID  string    `json:"instructor_id,omitempty"`
	MemberID      string    `json:"member_id,omitempty"`
	ReservationID string    `json:"reservation_id,omitempty"`
	StartsAt      time.Time `json:"starts_at,omitzero"`
	EndsAt        time.Time `json:"ends_at,omitzero"`
	Capacity      int       `json:"capacity,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher emits events on a best-effort basis. Publish never fails the
// caller's operation; delivery problems are logged by the implementation.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

func SessionEvent(eventType string, s *model.Session, at time.Time) Event {
	return Event{
		Type:         eventType,
		SessionID:    s.ID,
		InstructorID: s.InstructorID,
		StartsAt:     s.StartsAt,
		EndsAt:       s.EndsAt,
		Capacity:     s.Capacity,
		OccurredAt:   at,
	}
}

func ReservationEvent(eventType string, r *model.Reservation, at time.Time) Event {
	return Event{
		Type:          eventType,
		SessionID:     r.SessionID,
		MemberID:      r.MemberID,
		ReservationID: r.ID,
		OccurredAt:    at,
	}
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) {}

func (noopPublisher) Close() error { return nil }
