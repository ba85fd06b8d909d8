package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/notify"
	"github.com/yugal82/sports-screening-server/internal/payment"
	"github.com/yugal82/sports-screening-server/internal/reconcile"
	"github.com/yugal82/sports-screening-server/internal/store"
)

// memSeats is a compare-and-set seat counter
type memSeats struct {
	mu         sync.Mutex
	max        map[string]int
	available  map[string]int
	releaseErr error
	reserveErr error
}

func newMemSeats() *memSeats {
	return &memSeats{max: map[string]int{}, available: map[string]int{}}
}

func (m *memSeats) add(eventID string, max, available int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.max[eventID] = max
	m.available[eventID] = available
}

func (m *memSeats) get(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available[eventID]
}

func (m *memSeats) DecrementSeats(_ context.Context, eventID string, q int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserveErr != nil {
		return 0, false, m.reserveErr
	}
	avail, ok := m.available[eventID]
	if !ok {
		return 0, false, fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
	}
	if avail < q {
		return avail, false, nil
	}
	m.available[eventID] = avail - q
	return avail - q, true, nil
}

func (m *memSeats) IncrementSeats(_ context.Context, eventID string, q int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return 0, false, m.releaseErr
	}
	avail, ok := m.available[eventID]
	if !ok {
		return 0, false, fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
	}
	if avail+q > m.max[eventID] {
		return avail, false, nil
	}
	m.available[eventID] = avail + q
	return avail + q, true, nil
}

func (m *memSeats) AvailableSeats(_ context.Context, eventID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	avail, ok := m.available[eventID]
	if !ok {
		return 0, fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
	}
	return avail, nil
}

// memStore implements BookingStore, EventStore and UserStore
type memStore struct {
	mu            sync.Mutex
	events        map[string]*models.Event
	bookings      map[string]*models.Booking
	users         map[string]*models.User
	createErr     error
	transitionErr error
	attachErr     error
	userReads     int
	createdEvents int
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[string]*models.Event{},
		bookings: map[string]*models.Booking{},
		users:    map[string]*models.User{},
	}
}

func (m *memStore) CreateEvent(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createdEvents++
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, models.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ListUpcomingEvents(_ context.Context, from time.Time, category models.Category, limit int) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Event
	for _, e := range m.events {
		if e.StartsAt.After(from) && (category == "" || e.Category == category) && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) CreateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	return cloneBooking(b), nil
}

func (m *memStore) GetBookingByPaymentRef(_ context.Context, ref string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.Payment != nil && b.Payment.ProviderRef == ref {
			return cloneBooking(b), nil
		}
	}
	return nil, fmt.Errorf("booking %s: %w", ref, models.ErrNotFound)
}

func (m *memStore) ListBookingsByUser(_ context.Context, userID string) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, *cloneBooking(b))
		}
	}
	return out, nil
}

func (m *memStore) AttachPayment(_ context.Context, id string, info models.PaymentInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return m.attachErr
	}
	b, ok := m.bookings[id]
	if !ok || b.Payment != nil {
		return models.ErrInvalidTransition
	}
	b.Payment = &info
	return nil
}

func (m *memStore) TransitionBooking(_ context.Context, id string, t store.Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitionErr != nil {
		return false, m.transitionErr
	}
	b, ok := m.bookings[id]
	if !ok {
		return false, nil
	}
	for _, from := range t.From {
		if b.Status == from {
			b.Status = t.To
			if t.PaymentStatus != "" && b.Payment != nil {
				b.Payment.Status = t.PaymentStatus
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UpdatePaymentStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok && b.Payment != nil {
		b.Payment.Status = status
	}
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userReads++
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdateUserProfile(_ context.Context, id, name, phone, city string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	u.Name, u.Phone, u.City = name, phone, city
	cp := *u
	return &cp, nil
}

func (m *memStore) booking(id string) *models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneBooking(m.bookings[id])
}

func cloneBooking(b *models.Booking) *models.Booking {
	if b == nil {
		return nil
	}
	cp := *b
	if b.Payment != nil {
		p := *b.Payment
		cp.Payment = &p
	}
	return &cp
}

type fakeGateway struct {
	mu        sync.Mutex
	charges   []payment.ChargeRequest
	refunds   []string
	chargeErr error
	refundErr error
	seq       int

	// settle runs before Charge returns, like a provider that calls back early
	settle func(handle string, req payment.ChargeRequest)
}

func (g *fakeGateway) Charge(_ context.Context, req payment.ChargeRequest) (string, error) {
	g.mu.Lock()
	if g.chargeErr != nil {
		g.mu.Unlock()
		return "", g.chargeErr
	}
	g.seq++
	g.charges = append(g.charges, req)
	handle := fmt.Sprintf("pay_%d", g.seq)
	settle := g.settle
	g.mu.Unlock()

	if settle != nil {
		settle(handle, req)
	}
	return handle, nil
}

func (g *fakeGateway) Refund(_ context.Context, handle string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, handle)
	return nil
}

type fakeEvents struct {
	mu        sync.Mutex
	created   []*models.BookingCreatedEvent
	confirmed []*models.BookingConfirmedEvent
	cancelled []*models.BookingCancelledEvent
}

func (f *fakeEvents) PublishBookingCreated(_ context.Context, e *models.BookingCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, e)
	return nil
}

func (f *fakeEvents) PublishBookingConfirmed(_ context.Context, e *models.BookingConfirmedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, e)
	return nil
}

func (f *fakeEvents) PublishBookingCancelled(_ context.Context, e *models.BookingCancelledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, e)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

type fakeJournal struct {
	mu      sync.Mutex
	records []reconcile.Record
}

func (f *fakeJournal) Record(rec reconcile.Record) (*reconcile.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = fmt.Sprintf("rec-%d", len(f.records)+1)
	rec.CreatedAt = time.Now()
	f.records = append(f.records, rec)
	return &rec, nil
}

func (f *fakeJournal) Get(id string) (*reconcile.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, reconcile.ErrNotFound
}

func (f *fakeJournal) List(includeResolved bool) ([]reconcile.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []reconcile.Record
	for _, r := range f.records {
		if includeResolved || r.Open() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeJournal) MarkResolved(id, by string) (*reconcile.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			if !f.records[i].Open() {
				return nil, reconcile.ErrAlreadyResolved
			}
			now := time.Now()
			f.records[i].ResolvedAt = &now
			f.records[i].ResolvedBy = by
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, reconcile.ErrNotFound
}

func (f *fakeJournal) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
