package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrRateLimited          = errors.New("rate limited")
	ErrEventStarted         = errors.New("event has already started")
	ErrInvalidTransition    = errors.New("invalid booking state transition")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrInvariantViolation   = errors.New("inventory invariant violation")
)

// InsufficientCapacityError carries the seat count observed when a reservation was refused
type InsufficientCapacityError struct {
	EventID   string
	Requested int
	Remaining int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity for event %s: requested=%d, remaining=%d",
		e.EventID, e.Requested, e.Remaining)
}

func (e *InsufficientCapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}

// RateLimitedError tells the client how long to wait before retrying
type RateLimitedError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Action, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterSeconds rounds the retry hint up to whole seconds
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// InvariantViolationError reports a mutation that would break 0 <= available <= max
type InvariantViolationError struct {
	EventID  string
	Quantity int
	Detail   string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation on event %s (quantity=%d): %s", e.EventID, e.Quantity, e.Detail)
}

func (e *InvariantViolationError) Is(target error) bool {
	return target == ErrInvariantViolation
}

// Validationf builds a validation error with a client-facing message
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsDomainError reports whether err is one of the taxonomy errors above
// rather than an infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrValidation, ErrInsufficientCapacity, ErrUnauthorized, ErrForbidden,
		ErrRateLimited, ErrEventStarted, ErrInvalidTransition, ErrUpstreamUnavailable, ErrInvariantViolation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
