package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SeatStore is the backing store of the seat counter. Both mutations are a
// single conditional update: applied is false when the guard did not hold,
// in which case remaining is the current count.
type SeatStore interface {
	DecrementSeats(ctx context.Context, eventID string, quantity int) (remaining int, applied bool, err error)
	IncrementSeats(ctx context.Context, eventID string, quantity int) (remaining int, applied bool, err error)
	AvailableSeats(ctx context.Context, eventID string) (int, error)
}

// SeatNotifier is told about every applied ledger mutation
type SeatNotifier interface {
	SeatsChanged(ctx context.Context, eventID string, available int)
}

// InventoryLedger is the only writer of an event's available seats
type InventoryLedger struct {
	seats    SeatStore
	notifier SeatNotifier
	logger   *zap.Logger
}

// NewInventoryLedger creates a new ledger. notifier may be nil.
func NewInventoryLedger(seats SeatStore, notifier SeatNotifier) *InventoryLedger {
	return &InventoryLedger{
		seats:    seats,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// Reserve takes quantity seats or none at all
func (l *InventoryLedger) Reserve(ctx context.Context, eventID string, quantity int) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Reserve",
		attribute.String("event_id", eventID), attribute.Int("quantity", quantity))
	defer span.End()

	if quantity <= 0 {
		return 0, models.Validationf("quantity must be positive")
	}

	start := time.Now()
	remaining, applied, err := l.seats.DecrementSeats(ctx, eventID, quantity)
	util.LedgerOperationLatency.WithLabelValues("reserve").Observe(time.Since(start).Seconds())
	if err != nil {
		util.RecordError(span, err)
		return 0, l.storeError("reserve", eventID, err)
	}

	if !applied {
		util.LedgerRejectionsTotal.WithLabelValues("reserve", "insufficient_capacity").Inc()
		l.logger.Info("Reservation rejected",
			zap.String("event_id", eventID),
			zap.Int("requested", quantity),
			zap.Int("remaining", remaining))
		return remaining, &models.InsufficientCapacityError{
			EventID:   eventID,
			Requested: quantity,
			Remaining: remaining,
		}
	}

	l.changed(ctx, eventID, remaining)
	return remaining, nil
}

// Release returns quantity seats. A release that would exceed the event's
// capacity is refused and reported as an invariant violation.
func (l *InventoryLedger) Release(ctx context.Context, eventID string, quantity int) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Release",
		attribute.String("event_id", eventID), attribute.Int("quantity", quantity))
	defer span.End()

	if quantity <= 0 {
		return 0, models.Validationf("quantity must be positive")
	}

	start := time.Now()
	remaining, applied, err := l.seats.IncrementSeats(ctx, eventID, quantity)
	util.LedgerOperationLatency.WithLabelValues("release").Observe(time.Since(start).Seconds())
	if err != nil {
		util.RecordError(span, err)
		return 0, l.storeError("release", eventID, err)
	}

	if !applied {
		util.LedgerRejectionsTotal.WithLabelValues("release", "over_capacity").Inc()
		util.InvariantViolationsTotal.Inc()
		violation := &models.InvariantViolationError{
			EventID:  eventID,
			Quantity: quantity,
			Detail:   fmt.Sprintf("release would exceed max occupancy (available %d)", remaining),
		}
		util.RecordError(span, violation)
		l.logger.Error("Seat release refused",
			zap.Bool("invariant", true),
			zap.String("event_id", eventID),
			zap.Int("quantity", quantity),
			zap.Int("available", remaining))
		return remaining, violation
	}

	l.changed(ctx, eventID, remaining)
	return remaining, nil
}

// Available reads the authoritative counter
func (l *InventoryLedger) Available(ctx context.Context, eventID string) (int, error) {
	n, err := l.seats.AvailableSeats(ctx, eventID)
	if err != nil {
		return 0, l.storeError("available", eventID, err)
	}
	return n, nil
}

func (l *InventoryLedger) storeError(op, eventID string, err error) error {
	if models.IsDomainError(err) {
		return err
	}
	util.DegradedModeTotal.WithLabelValues("ledger").Inc()
	l.logger.Warn("Ledger store unavailable",
		zap.Bool("degraded", true),
		zap.String("op", op),
		zap.String("event_id", eventID),
		zap.Error(err))
	return fmt.Errorf("ledger %s for event %s: %w: %v", op, eventID, models.ErrUpstreamUnavailable, err)
}

func (l *InventoryLedger) changed(ctx context.Context, eventID string, available int) {
	if l.notifier != nil {
		l.notifier.SeatsChanged(ctx, eventID, available)
	}
}
