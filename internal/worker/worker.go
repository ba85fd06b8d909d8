package worker

import (
	"context"
	"fmt"

	"github.com/yugal82/sports-screening-server/internal/broker"
	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/util"

	"go.uber.org/zap"
)

// Consumer is satisfied by *broker.Consumer
type Consumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// ProcessedEvents deduplicates redelivered messages
type ProcessedEvents interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// PaymentOutcomes applies payment callbacks to bookings
type PaymentOutcomes interface {
	OnPaymentSucceeded(ctx context.Context, handle, bookingID string) error
	OnPaymentFailed(ctx context.Context, handle, bookingID string) error
}

// PaymentCallbackWorker consumes payment outcomes from the payment topic
type PaymentCallbackWorker struct {
	consumer     Consumer
	eventHandler *broker.EventHandler
	processed    ProcessedEvents
	outcomes     PaymentOutcomes
	logger       *zap.Logger
}

// NewPaymentCallbackWorker creates a new payment callback worker
func NewPaymentCallbackWorker(consumer Consumer, processed ProcessedEvents, outcomes PaymentOutcomes) *PaymentCallbackWorker {
	w := &PaymentCallbackWorker{
		consumer:  consumer,
		processed: processed,
		outcomes:  outcomes,
		logger:    util.GetLogger(),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnPaymentSucceeded(w.handleSucceeded)
	w.eventHandler.OnPaymentFailed(w.handleFailed)
	return w
}

// Start blocks consuming until ctx is cancelled
func (w *PaymentCallbackWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting payment callback worker")
	err := w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Stop closes the consumer
func (w *PaymentCallbackWorker) Stop() error {
	w.logger.Info("Stopping payment callback worker")
	return w.consumer.Close()
}

func (w *PaymentCallbackWorker) handleSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error {
	ctx, span := util.StartSpan(ctx, "PaymentCallbackWorker.handleSucceeded")
	defer span.End()

	return w.once(ctx, event.BaseEvent, func() error {
		return w.outcomes.OnPaymentSucceeded(ctx, event.PaymentRef, event.BookingID)
	})
}

func (w *PaymentCallbackWorker) handleFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	ctx, span := util.StartSpan(ctx, "PaymentCallbackWorker.handleFailed")
	defer span.End()

	w.logger.Warn("Payment failed",
		zap.String("payment_ref", event.PaymentRef),
		zap.String("booking_id", event.BookingID),
		zap.String("reason", event.Reason))

	return w.once(ctx, event.BaseEvent, func() error {
		return w.outcomes.OnPaymentFailed(ctx, event.PaymentRef, event.BookingID)
	})
}

// once runs apply unless the message was already handled. Domain rejections
// are acknowledged; upstream failures are returned and left uncommitted.
func (w *PaymentCallbackWorker) once(ctx context.Context, base models.BaseEvent, apply func() error) error {
	processed, err := w.processed.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	if err := apply(); err != nil {
		if !models.IsDomainError(err) || isUpstream(err) {
			return err
		}
		w.logger.Warn("Payment callback rejected",
			zap.String("event_id", base.EventID),
			zap.Error(err))
	}

	if err := w.processed.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}
