package model

import "time"

type Activity struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	EventID    string    `json:"event_id" bson:"event_id"`
	EventType  string    `json:"event_type" bson:"event_type"`
	SessionID  string    `json:"session_id" bson:"session_id"`
	MemberID   string    `json:"member_id,omitempty" bson:"member_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at" bson:"recorded_at"`
}
