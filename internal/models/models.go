package models

import "time"

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Actor roles
const (
	RoleUser  = "user"
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Venue is where a screening takes place
type Venue struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// Event is a timed sports screening with a finite seat inventory
type Event struct {
	ID             string       `json:"id"`
	OwnerID        string       `json:"ownerId"`
	Category       Category     `json:"category"`
	Title          string       `json:"title"`
	Venue          Venue        `json:"venue"`
	StartsAt       time.Time    `json:"startsAt"`
	Timezone       string       `json:"timezone"`
	MaxOccupancy   int          `json:"maxOccupancy"`
	AvailableSeats int          `json:"availableSeats"`
	TicketPrice    int64        `json:"ticketPrice"`
	Currency       string       `json:"currency"`
	Details        EventDetails `json:"details"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// HasStarted reports whether the scheduled start is at or before now
func (e *Event) HasStarted(now time.Time) bool {
	return !now.Before(e.StartsAt)
}

// LocalStart returns the start time in the event's own timezone
func (e *Event) LocalStart() time.Time {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return e.StartsAt
	}
	return e.StartsAt.In(loc)
}

// PaymentInfo tracks the external payment attached to a booking
type PaymentInfo struct {
	ProviderRef string `json:"providerRef"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

// Booking is a seat reservation held by a user for an event
type Booking struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	EventID   string       `json:"eventId"`
	Quantity  int          `json:"quantity"`
	Price     int64        `json:"price"`
	Currency  string       `json:"currency"`
	Status    string       `json:"status"`
	Payment   *PaymentInfo `json:"payment,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// HoldsSeats reports whether the booking counts against the event inventory
func (b *Booking) HoldsSeats() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

// PaymentSucceeded reports whether money was captured for the booking
func (b *Booking) PaymentSucceeded() bool {
	return b.Payment != nil && b.Payment.Status == PaymentStatusSucceeded
}

// User is the profile snapshot served through the cache layer
type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	City      string    `db:"city" json:"city"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Actor is the identity resolved by the authentication collaborator.
// TokenExpiry bounds how long derived cache entries may live.
type Actor struct {
	ID          string
	Role        string
	TokenExpiry time.Time
}

// IsAdmin reports whether the actor has the admin role
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// CanPublishEvents reports whether the actor may create events
func (a *Actor) CanPublishEvents() bool {
	return a != nil && (a.Role == RoleOwner || a.Role == RoleAdmin)
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
