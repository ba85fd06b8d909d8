package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/notify"
	"github.com/yugal82/sports-screening-server/internal/payment"
	"github.com/yugal82/sports-screening-server/internal/reconcile"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type reservationFixture struct {
	svc      *ReservationService
	store    *memStore
	seats    *memSeats
	gateway  *fakeGateway
	events   *fakeEvents
	notifier *fakeNotifier
	journal  *fakeJournal
}

func newReservationFixture(t *testing.T) *reservationFixture {
	t.Helper()
	f := &reservationFixture{
		store:    newMemStore(),
		seats:    newMemSeats(),
		gateway:  &fakeGateway{},
		events:   &fakeEvents{},
		notifier: &fakeNotifier{},
		journal:  &fakeJournal{},
	}
	f.svc = NewReservationService(f.store, NewInventoryLedger(f.seats, nil), f.gateway, f.events, f.notifier, f.journal)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *reservationFixture) addEvent(id string, max, available int, startsAt time.Time) {
	f.store.events[id] = &models.Event{
		ID:             id,
		OwnerID:        "owner-1",
		Category:       models.CategoryFootball,
		Title:          "Derby",
		StartsAt:       startsAt,
		Timezone:       "UTC",
		MaxOccupancy:   max,
		AvailableSeats: available,
		TicketPrice:    2500,
		Currency:       "INR",
		Details:        models.FootballDetails{HomeTeam: "A", AwayTeam: "B"},
	}
	f.seats.add(id, max, available)
}

var alice = &models.Actor{ID: "alice", Role: models.RoleUser}
var bob = &models.Actor{ID: "bob", Role: models.RoleUser}

func TestCreateBooking_Success(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(24*time.Hour))

	booking, err := f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 3})

	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, int64(7500), booking.Price)
	assert.Equal(t, "INR", booking.Currency)
	require.NotNil(t, booking.Payment)
	assert.Equal(t, "pay_1", booking.Payment.ProviderRef)
	assert.Equal(t, models.PaymentStatusPending, booking.Payment.Status)
	assert.Equal(t, 7, f.seats.get("evt-1"))

	require.Len(t, f.gateway.charges, 1)
	assert.Equal(t, int64(7500), f.gateway.charges[0].Amount)
	require.Len(t, f.events.created, 1)
	assert.Equal(t, booking.ID, f.events.created[0].BookingID)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 4, 4, testNow.Add(time.Hour))

	_, err := f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 0})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 5})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.CreateBooking(context.Background(), nil, CreateBookingRequest{EventID: "evt-1", Quantity: 1})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "nope", Quantity: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Equal(t, 4, f.seats.get("evt-1"))
	assert.Empty(t, f.gateway.charges)
}

func TestCreateBooking_EventStarted(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow)

	_, err := f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 1})

	assert.ErrorIs(t, err, models.ErrEventStarted)
	assert.Equal(t, 10, f.seats.get("evt-1"))
}

func TestCreateBooking_InsufficientCapacity(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 2, testNow.Add(time.Hour))

	_, err := f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 3})

	var capErr *models.InsufficientCapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 2, capErr.Remaining)
	assert.Empty(t, f.store.bookings)
}

func TestCreateBooking_PersistFailureCompensates(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	f.store.createErr = errors.New("insert failed")

	_, err := f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 4})

	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.Equal(t, 10, f.seats.get("evt-1"))
	assert.Equal(t, 0, f.journal.count())
}

func TestCreateBooking_FailedCompensationIsJournaled(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	f.store.createErr = errors.New("insert failed")
	f.seats.releaseErr = errors.New("connection reset")

	_, err := f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 4})

	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	require.Equal(t, 1, f.journal.count())
	rec := f.journal.records[0]
	assert.Equal(t, "evt-1", rec.EventID)
	assert.Equal(t, 4, rec.Quantity)
	assert.Equal(t, reconcile.ReasonCompensationFailed, rec.Reason)
}

func TestCreateBooking_PaymentUnavailableReleasesSeats(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	f.gateway.chargeErr = errors.New("provider down")

	_, err := f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 2})

	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.Equal(t, 10, f.seats.get("evt-1"))
	require.Len(t, f.store.bookings, 1)
	for _, b := range f.store.bookings {
		assert.Equal(t, models.BookingStatusCancelled, b.Status)
	}
}

func (f *reservationFixture) book(t *testing.T, actor *models.Actor, eventID string, qty int) *models.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), actor, CreateBookingRequest{EventID: eventID, Quantity: qty})
	require.NoError(t, err)
	return b
}

func TestCancelBooking_ReleasesSeats(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 3)

	result, err := f.svc.CancelBooking(context.Background(), alice, b.ID)

	require.NoError(t, err)
	assert.Equal(t, 3, result.SeatsReleased)
	assert.Nil(t, result.Refund)
	assert.False(t, result.Refunded)
	assert.Equal(t, models.BookingStatusCancelled, result.Booking.Status)
	assert.Equal(t, 10, f.seats.get("evt-1"))
	require.Len(t, f.events.cancelled, 1)
	assert.Equal(t, notify.KindBookingCancelled, f.notifier.sent[len(f.notifier.sent)-1].Kind)
}

func TestCancelBooking_OnlyOwner(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)

	_, err := f.svc.CancelBooking(context.Background(), bob, b.ID)

	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, 8, f.seats.get("evt-1"))
}

func TestCancelBooking_AfterStartRejected(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)
	f.svc.now = func() time.Time { return testNow.Add(2 * time.Hour) }

	_, err := f.svc.CancelBooking(context.Background(), alice, b.ID)

	assert.ErrorIs(t, err, models.ErrEventStarted)
	assert.Equal(t, models.BookingStatusPending, f.store.booking(b.ID).Status)
	assert.Equal(t, 8, f.seats.get("evt-1"))
}

func TestCancelBooking_TwiceReleasesOnce(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)

	_, err := f.svc.CancelBooking(context.Background(), alice, b.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), alice, b.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 10, f.seats.get("evt-1"))
}

func TestCancelBooking_ConcurrentCancelsReleaseOnce(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 4)

	var wg sync.WaitGroup
	var ok int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CancelBooking(context.Background(), alice, b.ID); err == nil {
				atomic.AddInt32(&ok, 1)
			} else {
				assert.ErrorIs(t, err, models.ErrInvalidTransition)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, 10, f.seats.get("evt-1"))
	assert.Equal(t, 0, f.journal.count())
}

func TestCancelBooking_RefundsCapturedPayment(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 1)
	require.NoError(t, f.svc.OnPaymentSucceeded(context.Background(), b.Payment.ProviderRef, ""))

	result, err := f.svc.CancelBooking(context.Background(), alice, b.ID)

	require.NoError(t, err)
	assert.True(t, result.Refunded)
	assert.Equal(t, []string{b.Payment.ProviderRef}, f.gateway.refunds)
	assert.Equal(t, models.PaymentStatusRefunded, f.store.booking(b.ID).Payment.Status)
}

func TestCancelBooking_RefundFailureDoesNotBlockRelease(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)
	require.NoError(t, f.svc.OnPaymentSucceeded(context.Background(), b.Payment.ProviderRef, ""))
	f.gateway.refundErr = errors.New("provider down")

	result, err := f.svc.CancelBooking(context.Background(), alice, b.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, result.SeatsReleased)
	require.Error(t, result.Refund)
	assert.NotEmpty(t, result.RefundError())
	assert.False(t, result.Refunded)
	assert.Equal(t, 10, f.seats.get("evt-1"))
	assert.Equal(t, models.PaymentStatusSucceeded, f.store.booking(b.ID).Payment.Status)
}

func TestCancelBooking_ReleaseFailureIsJournaled(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)
	f.seats.releaseErr = errors.New("timeout")

	_, err := f.svc.CancelBooking(context.Background(), alice, b.ID)

	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	require.Equal(t, 1, f.journal.count())
	assert.Equal(t, reconcile.ReasonCancelReleaseFailed, f.journal.records[0].Reason)
	assert.Equal(t, b.ID, f.journal.records[0].BookingID)
}

func TestOnPaymentSucceeded_ConfirmsOnce(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)

	require.NoError(t, f.svc.OnPaymentSucceeded(context.Background(), b.Payment.ProviderRef, ""))
	require.NoError(t, f.svc.OnPaymentSucceeded(context.Background(), b.Payment.ProviderRef, ""))

	stored := f.store.booking(b.ID)
	assert.Equal(t, models.BookingStatusConfirmed, stored.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, stored.Payment.Status)
	assert.Len(t, f.events.confirmed, 1)
	assert.Equal(t, 8, f.seats.get("evt-1"))
}

func TestOnPaymentSucceeded_UnknownHandle(t *testing.T) {
	f := newReservationFixture(t)

	err := f.svc.OnPaymentSucceeded(context.Background(), "pay_unknown", "")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOnPaymentSucceeded_AfterCancelRefunds(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)
	_, err := f.svc.CancelBooking(context.Background(), alice, b.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.OnPaymentSucceeded(context.Background(), b.Payment.ProviderRef, ""))

	assert.Equal(t, models.BookingStatusCancelled, f.store.booking(b.ID).Status)
	assert.Equal(t, []string{b.Payment.ProviderRef}, f.gateway.refunds)
	assert.Equal(t, 10, f.seats.get("evt-1"))
}

func TestOnPaymentFailed_CancelsAndReleases(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 3)

	require.NoError(t, f.svc.OnPaymentFailed(context.Background(), b.Payment.ProviderRef, ""))
	require.NoError(t, f.svc.OnPaymentFailed(context.Background(), b.Payment.ProviderRef, ""))

	stored := f.store.booking(b.ID)
	assert.Equal(t, models.BookingStatusCancelled, stored.Status)
	assert.Equal(t, models.PaymentStatusFailed, stored.Payment.Status)
	assert.Equal(t, 10, f.seats.get("evt-1"))
	assert.Len(t, f.events.cancelled, 1)
}

func TestOnPaymentFailed_IgnoredForConfirmed(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 3)
	require.NoError(t, f.svc.OnPaymentSucceeded(context.Background(), b.Payment.ProviderRef, ""))

	require.NoError(t, f.svc.OnPaymentFailed(context.Background(), b.Payment.ProviderRef, ""))

	assert.Equal(t, models.BookingStatusConfirmed, f.store.booking(b.ID).Status)
	assert.Equal(t, 7, f.seats.get("evt-1"))
}

func TestSeatInvariantHoldsAcrossLifecycle(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 20, 20, testNow.Add(time.Hour))

	b1 := f.book(t, alice, "evt-1", 5)
	b2 := f.book(t, bob, "evt-1", 4)
	b3 := f.book(t, alice, "evt-1", 2)
	require.NoError(t, f.svc.OnPaymentSucceeded(context.Background(), b1.Payment.ProviderRef, ""))
	require.NoError(t, f.svc.OnPaymentFailed(context.Background(), b2.Payment.ProviderRef, ""))
	_, err := f.svc.CancelBooking(context.Background(), alice, b3.ID)
	require.NoError(t, err)

	held := 0
	for _, b := range f.store.bookings {
		if b.HoldsSeats() {
			held += b.Quantity
		}
	}
	assert.Equal(t, 20-held, f.seats.get("evt-1"))
	assert.Equal(t, 15, f.seats.get("evt-1"))
}

// interleavingStore runs a hook once, right after the named read returns
type interleavingStore struct {
	*memStore
	afterPaymentLookup func()
	afterEventLookup   func()
}

func (s *interleavingStore) GetBookingByPaymentRef(ctx context.Context, ref string) (*models.Booking, error) {
	b, err := s.memStore.GetBookingByPaymentRef(ctx, ref)
	if hook := s.afterPaymentLookup; hook != nil {
		s.afterPaymentLookup = nil
		hook()
	}
	return b, err
}

func (s *interleavingStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	e, err := s.memStore.GetEvent(ctx, id)
	if hook := s.afterEventLookup; hook != nil {
		s.afterEventLookup = nil
		hook()
	}
	return e, err
}

func (f *reservationFixture) interleaved() (*ReservationService, *interleavingStore) {
	st := &interleavingStore{memStore: f.store}
	svc := NewReservationService(st, f.svc.ledger, f.gateway, f.events, f.notifier, f.journal)
	svc.now = f.svc.now
	return svc, st
}

func TestOnPaymentSucceeded_CancelBetweenReadAndConfirmRefunds(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)
	svc, st := f.interleaved()
	st.afterPaymentLookup = func() {
		_, err := svc.CancelBooking(context.Background(), alice, b.ID)
		require.NoError(t, err)
	}

	require.NoError(t, svc.OnPaymentSucceeded(context.Background(), b.Payment.ProviderRef, b.ID))

	stored := f.store.booking(b.ID)
	assert.Equal(t, models.BookingStatusCancelled, stored.Status)
	assert.Equal(t, models.PaymentStatusRefunded, stored.Payment.Status)
	assert.Equal(t, []string{b.Payment.ProviderRef}, f.gateway.refunds)
	assert.Equal(t, 10, f.seats.get("evt-1"))
}

func TestCancelBooking_ConfirmBetweenReadAndClaimRefunds(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)
	svc, st := f.interleaved()
	st.afterEventLookup = func() {
		require.NoError(t, svc.OnPaymentSucceeded(context.Background(), b.Payment.ProviderRef, b.ID))
	}

	result, err := svc.CancelBooking(context.Background(), alice, b.ID)

	require.NoError(t, err)
	assert.True(t, result.Refunded)
	assert.Equal(t, []string{b.Payment.ProviderRef}, f.gateway.refunds)
	assert.Equal(t, 10, f.seats.get("evt-1"))
}

func TestCreateBooking_CallbackBeforeHandleStored(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	var callbackErr error
	f.gateway.settle = func(handle string, req payment.ChargeRequest) {
		callbackErr = f.svc.OnPaymentSucceeded(context.Background(), handle, req.BookingID)
	}

	booking, err := f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 2})

	require.NoError(t, err)
	require.NoError(t, callbackErr)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	stored := f.store.booking(booking.ID)
	assert.Equal(t, models.BookingStatusConfirmed, stored.Status)
	assert.Equal(t, "pay_1", stored.Payment.ProviderRef)
	assert.Equal(t, models.PaymentStatusSucceeded, stored.Payment.Status)
	assert.Equal(t, 8, f.seats.get("evt-1"))
}

func TestOnPaymentSucceeded_ForeignHandleNotAttached(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 1)

	err := f.svc.OnPaymentSucceeded(context.Background(), "pay_other", b.ID)

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, models.BookingStatusPending, f.store.booking(b.ID).Status)
}

func TestCreateBooking_AttachFailureCancelsAndVoids(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	f.store.attachErr = errors.New("connection reset")

	_, err := f.svc.CreateBooking(context.Background(), alice, CreateBookingRequest{EventID: "evt-1", Quantity: 3})

	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	require.Len(t, f.store.bookings, 1)
	for _, b := range f.store.bookings {
		assert.Equal(t, models.BookingStatusCancelled, b.Status)
	}
	assert.Equal(t, 10, f.seats.get("evt-1"))
	assert.Equal(t, []string{"pay_1"}, f.gateway.refunds)
}

func TestCancelBooking_OverCapacityReleaseIsInvariantViolation(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 2)
	f.seats.add("evt-1", 10, 10)

	_, err := f.svc.CancelBooking(context.Background(), alice, b.ID)

	assert.ErrorIs(t, err, models.ErrInvariantViolation)
	assert.NotErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.Equal(t, 10, f.seats.get("evt-1"))
}

func TestGetBooking_Visibility(t *testing.T) {
	f := newReservationFixture(t)
	f.addEvent("evt-1", 10, 10, testNow.Add(time.Hour))
	b := f.book(t, alice, "evt-1", 1)

	_, err := f.svc.GetBooking(context.Background(), bob, b.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	got, err := f.svc.GetBooking(context.Background(), &models.Actor{ID: "root", Role: models.RoleAdmin}, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	mine, err := f.svc.ListMyBookings(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
