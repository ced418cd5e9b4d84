package handler

import (
	"context"
	"fmt"

	"fitbook/internal/activity/repository"
	"fitbook/internal/events"
	"fitbook/pkg/clock"
	"fitbook/pkg/kafka"
	"fitbook/pkg/logger"
	"fitbook/pkg/model"
)

// EventHandler turns published catalog and admission events into audit entries.
type EventHandler struct {
	repo  repository.ActivityRepository
	clock clock.Clock
	log   *logger.Logger
}

func NewEventHandler(repo repository.ActivityRepository, clk clock.Clock, log *logger.Logger) *EventHandler {
	if clk == nil {
		clk = clock.System()
	}
	return &EventHandler{
		repo:  repo,
		clock: clk,
		log:   log,
	}
}

// Handle is a kafka.MessageHandler. Undecodable events are permanent failures
// and go to the DLQ; store failures are transient and retried.
func (h *EventHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var event events.Event
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("malformed event payload", err)
	}
	if event.Type == "" || event.SessionID == "" {
		return kafka.NewPermanentError("event is missing type or session_id", kafka.ErrInvalidMessage)
	}

	eventID := msg.GetEventID()
	if eventID == "" {
		eventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}

	entry := &model.Activity{
		EventID:    eventID,
		EventType:  event.Type,
		SessionID:  event.SessionID,
		MemberID:   event.MemberID,
		OccurredAt: event.OccurredAt,
		RecordedAt: h.clock.Now().UTC(),
	}

	inserted, err := h.repo.Append(ctx, entry)
	if err != nil {
		return kafka.NewTransientError("failed to record activity", err)
	}
	if !inserted {
		h.log.Debug("Duplicate event ignored", "event_id", eventID, "event_type", event.Type)
		return nil
	}

	h.log.Info("Activity recorded",
		"event_id", eventID,
		"event_type", event.Type,
		"session_id", event.SessionID,
	)
	return nil
}
