package payment

import (
	"context"
	"errors"
)

// ErrDeclined is returned when the provider refuses a charge or refund
var ErrDeclined = errors.New("payment declined")

// ChargeRequest asks the provider to collect money for a booking
type ChargeRequest struct {
	BookingID string `json:"bookingId"`
	EventID   string `json:"eventId"`
	ActorID   string `json:"actorId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// Gateway is the payment collaborator. Charge returns the provider handle;
// the outcome arrives later as a callback.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
	Refund(ctx context.Context, handle string) error
}
