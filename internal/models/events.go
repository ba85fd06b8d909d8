package models

import "time"

// Event types
const (
	EventTypeBookingCreated   = "BOOKING_CREATED"
	EventTypeBookingConfirmed = "BOOKING_CONFIRMED"
	EventTypeBookingCancelled = "BOOKING_CANCELLED"
	EventTypePaymentSucceeded = "PAYMENT_SUCCEEDED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCreatedEvent published when seats are reserved for a new booking
type BookingCreatedEvent struct {
	BaseEvent
	BookingID   string `json:"booking_id"`
	ScreeningID string `json:"screening_id"`
	UserID      string `json:"user_id"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
}

// BookingConfirmedEvent published when payment succeeds
type BookingConfirmedEvent struct {
	BaseEvent
	BookingID   string `json:"booking_id"`
	ScreeningID string `json:"screening_id"`
	UserID      string `json:"user_id"`
	Quantity    int    `json:"quantity"`
	PaymentRef  string `json:"payment_ref"`
	AmountPaid  int64  `json:"amount_paid"`
	Currency    string `json:"currency"`
}

// BookingCancelledEvent published when a booking releases its seats
type BookingCancelledEvent struct {
	BaseEvent
	BookingID   string `json:"booking_id"`
	ScreeningID string `json:"screening_id"`
	UserID      string `json:"user_id"`
	Quantity    int    `json:"quantity"`
	Reason      string `json:"reason"`
	Refunded    bool   `json:"refunded"`
}

// PaymentSucceededEvent delivered by the payment collaborator
type PaymentSucceededEvent struct {
	BaseEvent
	PaymentRef string `json:"payment_ref"`
	BookingID  string `json:"booking_id"`
	Amount     int64  `json:"amount"`
}

// PaymentFailedEvent delivered by the payment collaborator
type PaymentFailedEvent struct {
	BaseEvent
	PaymentRef string `json:"payment_ref"`
	BookingID  string `json:"booking_id"`
	Reason     string `json:"reason"`
}
