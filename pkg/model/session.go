package model

import (
	"time"
)

type Session struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	InstructorID string    `json:"instructor_id" bson:"instructor_id" validate:"required,mongodb"`
	CategoryID   string    `json:"category_id" bson:"category_id" validate:"required,mongodb"`
	Name         string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	StartsAt     time.Time `json:"starts_at" bson:"starts_at" validate:"required"`
	EndsAt       time.Time `json:"ends_at" bson:"ends_at" validate:"required,gtfield=StartsAt"`
	Capacity     int       `json:"capacity" bson:"capacity" validate:"required,min=1"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type CreateSessionRequest struct {
	InstructorID string    `json:"instructor_id"`
	CategoryID   string    `json:"category_id"`
	Name         string    `json:"name"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	Capacity     int       `json:"capacity"`
}

func (r *CreateSessionRequest) ToSession() *Session {
	return &Session{
		InstructorID: r.InstructorID,
		CategoryID:   r.CategoryID,
		Name:         r.Name,
		StartsAt:     r.StartsAt.UTC(),
		EndsAt:       r.EndsAt.UTC(),
		Capacity:     r.Capacity,
	}
}

// SessionUpdate is a partial update. Nil or empty fields are left unchanged.
type SessionUpdate struct {
	InstructorID string     `json:"instructor_id,omitempty" validate:"omitempty,mongodb"`
	CategoryID   string     `json:"category_id,omitempty" validate:"omitempty,mongodb"`
	Name         string     `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	StartsAt     *time.Time `json:"starts_at,omitempty" validate:"omitempty"`
	EndsAt       *time.Time `json:"ends_at,omitempty" validate:"omitempty"`
	Capacity     *int       `json:"capacity,omitempty" validate:"omitempty"`
}

func (u *SessionUpdate) IsEmpty() bool {
	return u.InstructorID == "" && u.CategoryID == "" && u.Name == "" &&
		u.StartsAt == nil && u.EndsAt == nil && u.Capacity == nil
}

// Apply returns a copy of s with the update merged in.
func (u *SessionUpdate) Apply(s Session) Session {
	if u.InstructorID != "" {
		s.InstructorID = u.InstructorID
	}
	if u.CategoryID != "" {
		s.CategoryID = u.CategoryID
	}
	if u.Name != "" {
		s.Name = u.Name
	}
	if u.StartsAt != nil {
		s.StartsAt = u.StartsAt.UTC()
	}
	if u.EndsAt != nil {
		s.EndsAt = u.EndsAt.UTC()
	}
	if u.Capacity != nil {
		s.Capacity = *u.Capacity
	}
	return s
}

// MovesSchedule reports whether the update can change which sessions this one overlaps.
func (u *SessionUpdate) MovesSchedule() bool {
	return u.InstructorID != "" || u.StartsAt != nil || u.EndsAt != nil
}
