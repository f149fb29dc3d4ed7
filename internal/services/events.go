package services

import (
	"context"

	"estatecrm/internal/amqp"
	"estatecrm/internal/log"
	"estatecrm/internal/metrics"
)

// EventPublisher is satisfied by *amqp.Client. A nil publisher disables
// events.
type EventPublisher interface {
	Publish(ctx context.Context, e *amqp.Event) error
}

// publish sends an event after the write it describes has committed. A
// failure is logged and never fails the caller: the record is already saved.
func publish(ctx context.Context, pub EventPublisher, m *metrics.Metrics, logger *log.Logger, t amqp.EventType, id string, payload any) {
	if pub == nil {
		logger.DebugContext(ctx, "AMQP not configured, skipping event", "event_type", t, "id", id)
		return
	}
	e, err := amqp.NewEvent(t, id, payload)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to build event", "event_type", t, "id", id, "error", err)
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "event_type", t, "id", id, "error", err)
		return
	}
	m.EventPublished(string(t))
}
