package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/notify"
	"github.com/yugal82/sports-screening-server/internal/payment"
	"github.com/yugal82/sports-screening-server/internal/reconcile"
	"github.com/yugal82/sports-screening-server/internal/store"
	"github.com/yugal82/sports-screening-server/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BookingStore is the persistence the reservation flow needs
type BookingStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByPaymentRef(ctx context.Context, ref string) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error)
	AttachPayment(ctx context.Context, bookingID string, info models.PaymentInfo) error
	TransitionBooking(ctx context.Context, bookingID string, t store.Transition) (bool, error)
	UpdatePaymentStatus(ctx context.Context, bookingID, status string) error
}

// BookingEvents publishes booking lifecycle events
type BookingEvents interface {
	PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error
	PublishBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error
	PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error
}

// Notifier hands notification requests to the mailer
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Journal records releases that need manual reconciliation
type Journal interface {
	Record(rec reconcile.Record) (*reconcile.Record, error)
}

// ReservationService drives a booking through pending, confirmed and cancelled
type ReservationService struct {
	store    BookingStore
	ledger   *InventoryLedger
	payments payment.Gateway
	events   BookingEvents
	notifier Notifier
	journal  Journal
	logger   *zap.Logger
	now      func() time.Time
}

// NewReservationService creates a new reservation service. events and
// notifier may be nil.
func NewReservationService(
	store BookingStore,
	ledger *InventoryLedger,
	payments payment.Gateway,
	events BookingEvents,
	notifier Notifier,
	journal Journal,
) *ReservationService {
	return &ReservationService{
		store:    store,
		ledger:   ledger,
		payments: payments,
		events:   events,
		notifier: notifier,
		journal:  journal,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// CreateBookingRequest represents a request to book seats
type CreateBookingRequest struct {
	EventID  string `json:"eventId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// CancelResult describes what a cancellation did. Refund is set when a
// captured payment could not be refunded; the seats are released anyway.
type CancelResult struct {
	Booking       *models.Booking `json:"booking"`
	SeatsReleased int             `json:"seatsReleased"`
	Refunded      bool            `json:"refunded"`
	Refund        error           `json:"-"`
}

// RefundError is the client-facing form of Refund
func (r *CancelResult) RefundError() string {
	if r.Refund == nil {
		return ""
	}
	return r.Refund.Error()
}

// CreateBooking reserves seats and opens a pending booking with a payment attached
func (s *ReservationService) CreateBooking(ctx context.Context, actor *models.Actor, req CreateBookingRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.CreateBooking",
		attribute.String("event_id", req.EventID), attribute.Int("quantity", req.Quantity))
	defer span.End()

	if actor == nil {
		return nil, models.ErrUnauthorized
	}
	if req.Quantity <= 0 {
		util.BookingsFailedTotal.WithLabelValues("validation").Inc()
		return nil, models.Validationf("quantity must be at least 1")
	}

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		util.BookingsFailedTotal.WithLabelValues("event_lookup").Inc()
		return nil, s.upstream("get event", err)
	}
	if req.Quantity > event.MaxOccupancy {
		util.BookingsFailedTotal.WithLabelValues("validation").Inc()
		return nil, models.Validationf("quantity %d exceeds the venue capacity of %d", req.Quantity, event.MaxOccupancy)
	}
	if event.HasStarted(s.now()) {
		util.BookingsFailedTotal.WithLabelValues("event_started").Inc()
		return nil, fmt.Errorf("event %s: %w", event.ID, models.ErrEventStarted)
	}

	if _, err := s.ledger.Reserve(ctx, event.ID, req.Quantity); err != nil {
		util.BookingsFailedTotal.WithLabelValues("reserve").Inc()
		return nil, err
	}

	booking := &models.Booking{
		ID:       uuid.New().String(),
		UserID:   actor.ID,
		EventID:  event.ID,
		Quantity: req.Quantity,
		Price:    event.TicketPrice * int64(req.Quantity),
		Currency: event.Currency,
		Status:   models.BookingStatusPending,
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		util.BookingsFailedTotal.WithLabelValues("persist").Inc()
		util.RecordError(span, err)
		s.logger.Error("Failed to persist booking, compensating",
			zap.String("event_id", event.ID),
			zap.Int("quantity", req.Quantity),
			zap.Error(err))
		s.compensate(ctx, booking, reconcile.ReasonCompensationFailed)
		return nil, fmt.Errorf("failed to create booking: %w", models.ErrUpstreamUnavailable)
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID),
		zap.String("event_id", booking.EventID),
		zap.Int("quantity", booking.Quantity))

	handle, err := s.payments.Charge(ctx, payment.ChargeRequest{
		BookingID: booking.ID,
		EventID:   booking.EventID,
		ActorID:   actor.ID,
		Amount:    booking.Price,
		Currency:  booking.Currency,
	})
	if err != nil {
		util.BookingsFailedTotal.WithLabelValues("payment_unavailable").Inc()
		s.logger.Warn("Payment initiation failed, cancelling booking",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
		s.abandon(ctx, booking, "payment_unavailable")
		return nil, fmt.Errorf("payment provider: %w", models.ErrUpstreamUnavailable)
	}

	info := models.PaymentInfo{
		ProviderRef: handle,
		Amount:      booking.Price,
		Currency:    booking.Currency,
		Status:      models.PaymentStatusPending,
	}
	if err := s.store.AttachPayment(ctx, booking.ID, info); err != nil {
		if current, ok := s.attachedByCallback(ctx, booking.ID, handle, err); ok {
			s.publishCreated(ctx, current)
			return current, nil
		}

		util.BookingsFailedTotal.WithLabelValues("payment_unattached").Inc()
		s.logger.Error("Failed to attach payment to booking, cancelling",
			zap.String("booking_id", booking.ID),
			zap.String("payment_ref", handle),
			zap.Error(err))
		if s.abandon(ctx, booking, "payment_unattached") {
			s.void(ctx, booking, handle)
		}
		return nil, fmt.Errorf("failed to attach payment: %w", models.ErrUpstreamUnavailable)
	}
	booking.Payment = &info

	s.publishCreated(ctx, booking)
	return booking, nil
}

// attachedByCallback reports whether a payment callback stored handle on the
// booking before CreateBooking could.
func (s *ReservationService) attachedByCallback(ctx context.Context, bookingID, handle string, attachErr error) (*models.Booking, bool) {
	if !errors.Is(attachErr, models.ErrInvalidTransition) {
		return nil, false
	}
	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil || current.Payment == nil || current.Payment.ProviderRef != handle {
		return nil, false
	}
	return current, true
}

// void refunds a charge whose booking was cancelled before the payment was recorded
func (s *ReservationService) void(ctx context.Context, booking *models.Booking, handle string) {
	if err := s.payments.Refund(ctx, handle); err != nil {
		util.RefundFailuresTotal.Inc()
		s.logger.Error("Failed to void unattached payment",
			zap.String("booking_id", booking.ID),
			zap.String("payment_ref", handle),
			zap.Error(err))
	}
}

// compensate returns the seats of a booking that never became durable
func (s *ReservationService) compensate(ctx context.Context, booking *models.Booking, reason string) {
	if _, err := s.ledger.Release(ctx, booking.EventID, booking.Quantity); err != nil {
		s.journalRelease(booking, reason, err)
	}
}

// abandon cancels a pending booking whose payment could not be set up and
// reports whether it did
func (s *ReservationService) abandon(ctx context.Context, booking *models.Booking, reason string) bool {
	changed, err := s.store.TransitionBooking(ctx, booking.ID, store.Transition{
		From: []string{models.BookingStatusPending},
		To:   models.BookingStatusCancelled,
	})
	if err != nil || !changed {
		// still pending and still holding its seats, so the counter is consistent
		s.logger.Error("Failed to cancel booking after payment failure",
			zap.String("booking_id", booking.ID),
			zap.String("reason", reason),
			zap.Bool("changed", changed),
			zap.Error(err))
		return false
	}
	booking.Status = models.BookingStatusCancelled
	util.BookingsCancelledTotal.WithLabelValues(reason).Inc()
	s.compensate(ctx, booking, reconcile.ReasonCompensationFailed)
	return true
}

// CancelBooking cancels a booking owned by actor and returns its seats
func (s *ReservationService) CancelBooking(ctx context.Context, actor *models.Actor, bookingID string) (*CancelResult, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.CancelBooking",
		attribute.String("booking_id", bookingID))
	defer span.End()

	if actor == nil {
		return nil, models.ErrUnauthorized
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.upstream("get booking", err)
	}
	if booking.UserID != actor.ID {
		return nil, fmt.Errorf("booking %s belongs to another user: %w", bookingID, models.ErrForbidden)
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, fmt.Errorf("booking %s is already cancelled: %w", bookingID, models.ErrInvalidTransition)
	}

	event, err := s.store.GetEvent(ctx, booking.EventID)
	if err != nil {
		return nil, s.upstream("get event", err)
	}
	if event.HasStarted(s.now()) {
		return nil, fmt.Errorf("event %s: %w", event.ID, models.ErrEventStarted)
	}

	// claim the transition first; only the winner releases seats
	changed, err := s.store.TransitionBooking(ctx, booking.ID, store.Transition{
		From: []string{models.BookingStatusPending, models.BookingStatusConfirmed},
		To:   models.BookingStatusCancelled,
	})
	if err != nil {
		return nil, s.upstream("cancel booking", err)
	}
	if !changed {
		return nil, fmt.Errorf("booking %s was cancelled concurrently: %w", bookingID, models.ErrInvalidTransition)
	}
	booking.Status = models.BookingStatusCancelled

	// a payment callback may have confirmed the booking after it was read
	if current, err := s.store.GetBooking(ctx, booking.ID); err != nil {
		s.logger.Error("Failed to reload cancelled booking, refund decision uses the earlier read",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	} else {
		booking.Payment = current.Payment
	}

	result := &CancelResult{Booking: booking}

	if _, err := s.ledger.Release(ctx, booking.EventID, booking.Quantity); err != nil {
		util.RecordError(span, err)
		s.journalRelease(booking, reconcile.ReasonCancelReleaseFailed, err)
		if errors.Is(err, models.ErrInvariantViolation) {
			return nil, fmt.Errorf("booking %s cancelled but seats not released: %w", bookingID, err)
		}
		return nil, fmt.Errorf("booking %s cancelled but seats not released: %w", bookingID, models.ErrUpstreamUnavailable)
	}
	result.SeatsReleased = booking.Quantity
	util.BookingsCancelledTotal.WithLabelValues("user").Inc()

	if booking.PaymentSucceeded() {
		if err := s.refund(ctx, booking); err != nil {
			result.Refund = err
		} else {
			result.Refunded = true
		}
	}

	s.logger.Info("Booking cancelled",
		zap.String("booking_id", booking.ID),
		zap.String("event_id", booking.EventID),
		zap.Int("seats_released", result.SeatsReleased),
		zap.Bool("refunded", result.Refunded))

	s.publishCancelled(ctx, booking, "user_cancelled", result.Refunded)
	return result, nil
}

// OnPaymentSucceeded confirms the pending booking behind handle. Repeated
// callbacks are no-ops. bookingID is optional and locates the booking when
// the callback beats CreateBooking to storing handle.
func (s *ReservationService) OnPaymentSucceeded(ctx context.Context, handle, bookingID string) error {
	ctx, span := util.StartSpan(ctx, "ReservationService.OnPaymentSucceeded",
		attribute.String("payment_ref", handle))
	defer span.End()

	booking, err := s.bookingForPayment(ctx, handle, bookingID)
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("succeeded", "unknown").Inc()
		return s.upstream("get booking by payment", err)
	}

	changed, err := s.store.TransitionBooking(ctx, booking.ID, store.Transition{
		From:          []string{models.BookingStatusPending},
		To:            models.BookingStatusConfirmed,
		PaymentStatus: models.PaymentStatusSucceeded,
	})
	if err != nil {
		return s.upstream("confirm booking", err)
	}

	if !changed {
		// decide on the status that made the transition miss, not the earlier read
		current, err := s.store.GetBooking(ctx, booking.ID)
		if err != nil {
			return s.upstream("reload booking", err)
		}
		if current.Payment == nil {
			current.Payment = booking.Payment
		}
		s.settleUnconfirmed(ctx, current, handle)
		return nil
	}

	booking.Status = models.BookingStatusConfirmed
	if booking.Payment != nil {
		booking.Payment.Status = models.PaymentStatusSucceeded
	}
	util.BookingsConfirmedTotal.Inc()
	util.PaymentCallbacksTotal.WithLabelValues("succeeded", "applied").Inc()
	s.logger.Info("Booking confirmed",
		zap.String("booking_id", booking.ID),
		zap.String("payment_ref", handle))

	s.publishConfirmed(ctx, booking)
	return nil
}

// OnPaymentFailed cancels the pending booking behind handle and releases its seats
func (s *ReservationService) OnPaymentFailed(ctx context.Context, handle, bookingID string) error {
	ctx, span := util.StartSpan(ctx, "ReservationService.OnPaymentFailed",
		attribute.String("payment_ref", handle))
	defer span.End()

	booking, err := s.bookingForPayment(ctx, handle, bookingID)
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("failed", "unknown").Inc()
		return s.upstream("get booking by payment", err)
	}

	changed, err := s.store.TransitionBooking(ctx, booking.ID, store.Transition{
		From:          []string{models.BookingStatusPending},
		To:            models.BookingStatusCancelled,
		PaymentStatus: models.PaymentStatusFailed,
	})
	if err != nil {
		return s.upstream("cancel booking", err)
	}
	if !changed {
		util.PaymentCallbacksTotal.WithLabelValues("failed", "ignored").Inc()
		s.logger.Info("Payment failure callback ignored",
			zap.String("booking_id", booking.ID),
			zap.String("status", booking.Status))
		return nil
	}
	booking.Status = models.BookingStatusCancelled
	util.PaymentCallbacksTotal.WithLabelValues("failed", "applied").Inc()
	util.BookingsCancelledTotal.WithLabelValues("payment_failed").Inc()

	if _, err := s.ledger.Release(ctx, booking.EventID, booking.Quantity); err != nil {
		s.journalRelease(booking, reconcile.ReasonPaymentFailedRelease, err)
	}

	s.logger.Info("Booking cancelled after payment failure",
		zap.String("booking_id", booking.ID),
		zap.String("payment_ref", handle))

	s.send(ctx, notify.KindPaymentFailed, booking, false)
	s.publishCancelled(ctx, booking, "payment_failed", false)
	return nil
}

// settleUnconfirmed handles a success callback for a booking that is no longer pending
func (s *ReservationService) settleUnconfirmed(ctx context.Context, booking *models.Booking, handle string) {
	switch {
	case booking.Status == models.BookingStatusConfirmed,
		booking.Payment != nil && booking.Payment.Status == models.PaymentStatusRefunded:
		util.PaymentCallbacksTotal.WithLabelValues("succeeded", "duplicate").Inc()
		s.logger.Info("Duplicate payment success callback", zap.String("booking_id", booking.ID))
	case booking.Status == models.BookingStatusCancelled:
		// money arrived for seats we no longer hold
		util.PaymentCallbacksTotal.WithLabelValues("succeeded", "late").Inc()
		s.logger.Warn("Payment succeeded for a cancelled booking, refunding",
			zap.String("booking_id", booking.ID),
			zap.String("payment_ref", handle))
		if err := s.store.UpdatePaymentStatus(ctx, booking.ID, models.PaymentStatusSucceeded); err != nil {
			s.logger.Error("Failed to record late payment", zap.Error(err))
		}
		if booking.Payment == nil {
			booking.Payment = &models.PaymentInfo{ProviderRef: handle}
		}
		_ = s.refund(ctx, booking)
	}
}

// bookingForPayment finds the booking behind handle. A provider may call back
// before CreateBooking has stored handle; bookingID then locates the booking
// and handle is attached here.
func (s *ReservationService) bookingForPayment(ctx context.Context, handle, bookingID string) (*models.Booking, error) {
	booking, err := s.store.GetBookingByPaymentRef(ctx, handle)
	if err == nil || bookingID == "" || !errors.Is(err, models.ErrNotFound) {
		return booking, err
	}

	booking, err = s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Payment != nil {
		if booking.Payment.ProviderRef != handle {
			return nil, fmt.Errorf("booking %s is paid by another handle than %s: %w", bookingID, handle, models.ErrNotFound)
		}
		return booking, nil
	}

	info := models.PaymentInfo{
		ProviderRef: handle,
		Amount:      booking.Price,
		Currency:    booking.Currency,
		Status:      models.PaymentStatusPending,
	}
	if err := s.store.AttachPayment(ctx, booking.ID, info); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			// CreateBooking stored its handle in the meantime
			return s.store.GetBookingByPaymentRef(ctx, handle)
		}
		return nil, err
	}
	s.logger.Info("Payment attached from callback",
		zap.String("booking_id", booking.ID),
		zap.String("payment_ref", handle))
	booking.Payment = &info
	return booking, nil
}

// GetBooking returns a booking visible to actor
func (s *ReservationService) GetBooking(ctx context.Context, actor *models.Actor, bookingID string) (*models.Booking, error) {
	if actor == nil {
		return nil, models.ErrUnauthorized
	}
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.upstream("get booking", err)
	}
	if booking.UserID != actor.ID && !actor.IsAdmin() {
		return nil, fmt.Errorf("booking %s: %w", bookingID, models.ErrForbidden)
	}
	return booking, nil
}

// ListMyBookings returns the actor's bookings, newest first
func (s *ReservationService) ListMyBookings(ctx context.Context, actor *models.Actor) ([]models.Booking, error) {
	if actor == nil {
		return nil, models.ErrUnauthorized
	}
	bookings, err := s.store.ListBookingsByUser(ctx, actor.ID)
	if err != nil {
		return nil, s.upstream("list bookings", err)
	}
	return bookings, nil
}

func (s *ReservationService) refund(ctx context.Context, booking *models.Booking) error {
	if err := s.payments.Refund(ctx, booking.Payment.ProviderRef); err != nil {
		util.RefundFailuresTotal.Inc()
		s.logger.Error("Refund failed",
			zap.String("booking_id", booking.ID),
			zap.String("payment_ref", booking.Payment.ProviderRef),
			zap.Error(err))
		return fmt.Errorf("refund of %s failed: %w", booking.Payment.ProviderRef, err)
	}

	booking.Payment.Status = models.PaymentStatusRefunded
	if err := s.store.UpdatePaymentStatus(ctx, booking.ID, models.PaymentStatusRefunded); err != nil {
		s.logger.Error("Failed to record refund",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}
	return nil
}

func (s *ReservationService) journalRelease(booking *models.Booking, reason string, cause error) {
	util.ReconciliationRecordsTotal.WithLabelValues(reason).Inc()

	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	rec, err := s.journal.Record(reconcile.Record{
		BookingID: booking.ID,
		EventID:   booking.EventID,
		Quantity:  booking.Quantity,
		Reason:    reason,
		Detail:    detail,
	})
	if err != nil {
		s.logger.Error("Failed to journal seat release, manual reconciliation required",
			zap.String("booking_id", booking.ID),
			zap.String("event_id", booking.EventID),
			zap.Int("quantity", booking.Quantity),
			zap.String("reason", reason),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	s.logger.Error("Seat release journaled for reconciliation",
		zap.String("record_id", rec.ID),
		zap.String("booking_id", booking.ID),
		zap.String("event_id", booking.EventID),
		zap.Int("quantity", booking.Quantity),
		zap.String("reason", reason),
		zap.NamedError("cause", cause))
}

// upstream passes domain errors through and marks anything else as a
// dependency failure
func (s *ReservationService) upstream(op string, err error) error {
	if models.IsDomainError(err) {
		return err
	}
	util.DegradedModeTotal.WithLabelValues("store").Inc()
	s.logger.Warn("Store call failed",
		zap.Bool("degraded", true),
		zap.String("op", op),
		zap.Error(err))
	return fmt.Errorf("%s: %w", op, errors.Join(models.ErrUpstreamUnavailable, err))
}

func (s *ReservationService) publishCreated(ctx context.Context, b *models.Booking) {
	if s.events == nil {
		return
	}
	event := &models.BookingCreatedEvent{
		BaseEvent:   s.baseEvent(models.EventTypeBookingCreated),
		BookingID:   b.ID,
		ScreeningID: b.EventID,
		UserID:      b.UserID,
		Quantity:    b.Quantity,
		Price:       b.Price,
		Currency:    b.Currency,
	}
	if err := s.events.PublishBookingCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCreated event", zap.Error(err))
	}
}

func (s *ReservationService) publishConfirmed(ctx context.Context, b *models.Booking) {
	s.send(ctx, notify.KindTicketIssued, b, false)
	if s.events == nil {
		return
	}
	event := &models.BookingConfirmedEvent{
		BaseEvent:   s.baseEvent(models.EventTypeBookingConfirmed),
		BookingID:   b.ID,
		ScreeningID: b.EventID,
		UserID:      b.UserID,
		Quantity:    b.Quantity,
		AmountPaid:  b.Price,
		Currency:    b.Currency,
	}
	if b.Payment != nil {
		event.PaymentRef = b.Payment.ProviderRef
	}
	if err := s.events.PublishBookingConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingConfirmed event", zap.Error(err))
	}
}

func (s *ReservationService) publishCancelled(ctx context.Context, b *models.Booking, reason string, refunded bool) {
	if reason != "payment_failed" {
		s.send(ctx, notify.KindBookingCancelled, b, refunded)
	}
	if s.events == nil {
		return
	}
	event := &models.BookingCancelledEvent{
		BaseEvent:   s.baseEvent(models.EventTypeBookingCancelled),
		BookingID:   b.ID,
		ScreeningID: b.EventID,
		UserID:      b.UserID,
		Quantity:    b.Quantity,
		Reason:      reason,
		Refunded:    refunded,
	}
	if err := s.events.PublishBookingCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCancelled event", zap.Error(err))
	}
}

func (s *ReservationService) send(ctx context.Context, kind string, b *models.Booking, refunded bool) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notify.Message{
		Kind:      kind,
		BookingID: b.ID,
		UserID:    b.UserID,
		EventID:   b.EventID,
		Quantity:  b.Quantity,
		Refunded:  refunded,
	})
	if err != nil {
		s.logger.Error("Failed to queue notification",
			zap.String("kind", kind),
			zap.String("booking_id", b.ID),
			zap.Error(err))
	}
}

func (s *ReservationService) baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: s.now(),
	}
}
