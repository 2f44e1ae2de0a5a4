package notifications

import (
	"context"

	"slotbook/pkg/kafka"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

const schemaVersion = "1"

// Dispatcher publishes transition events to the transitions topic.
// Keyed by reservation id so each reservation's events stay in order.
type Dispatcher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewDispatcher(producer *kafka.Producer, source string, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, event *model.TransitionEvent) error {
	eventType := model.EventTypeReservationTransitioned
	if event.FromStatus == "" {
		eventType = model.EventTypeReservationCreated
	}

	msg := kafka.NewMessage().
		WithKey(event.ReservationID).
		WithValue(event).
		WithEventID(event.EventID).
		WithEventType(eventType).
		WithSource(d.source).
		WithSchemaVersion(schemaVersion).
		Build()

	return d.producer.Publish(ctx, msg)
}

func (d *Dispatcher) Close() error {
	return d.producer.Close()
}
