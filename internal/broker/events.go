package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrUndecodable marks a message no retry can handle
var ErrUndecodable = errors.New("undecodable message")

// Publisher is satisfied by *Producer
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	bookings Publisher
	payments Publisher
}

// NewEventPublisher creates a new event publisher. payments may be nil when
// no component emits payment callbacks onto the bus.
func NewEventPublisher(bookings, payments Publisher) *EventPublisher {
	return &EventPublisher{bookings: bookings, payments: payments}
}

func bookingKey(id string) string {
	return "booking-" + id
}

// PublishBookingCreated publishes BookingCreated event
func (ep *EventPublisher) PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error {
	return ep.bookings.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishBookingConfirmed publishes BookingConfirmed event
func (ep *EventPublisher) PublishBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error {
	return ep.bookings.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishBookingCancelled publishes BookingCancelled event
func (ep *EventPublisher) PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error {
	return ep.bookings.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishPaymentSucceeded publishes PaymentSucceeded event
func (ep *EventPublisher) PublishPaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error {
	if ep.payments == nil {
		return fmt.Errorf("no payment topic configured")
	}
	return ep.payments.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishPaymentFailed publishes PaymentFailed event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	if ep.payments == nil {
		return fmt.Errorf("no payment topic configured")
	}
	return ep.payments.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPaymentSucceeded func(context.Context, *models.PaymentSucceededEvent) error
	onPaymentFailed    func(context.Context, *models.PaymentFailedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnPaymentSucceeded registers a handler for PaymentSucceeded events
func (eh *EventHandler) OnPaymentSucceeded(handler func(context.Context, *models.PaymentSucceededEvent) error) {
	eh.onPaymentSucceeded = handler
}

// OnPaymentFailed registers a handler for PaymentFailed events
func (eh *EventHandler) OnPaymentFailed(handler func(context.Context, *models.PaymentFailedEvent) error) {
	eh.onPaymentFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: base event: %v", ErrUndecodable, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePaymentSucceeded:
		if eh.onPaymentSucceeded != nil {
			var event models.PaymentSucceededEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: PaymentSucceeded event: %v", ErrUndecodable, err)
			}
			return eh.onPaymentSucceeded(ctx, &event)
		}

	case models.EventTypePaymentFailed:
		if eh.onPaymentFailed != nil {
			var event models.PaymentFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: PaymentFailed event: %v", ErrUndecodable, err)
			}
			return eh.onPaymentFailed(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
