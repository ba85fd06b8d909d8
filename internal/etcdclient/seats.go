package etcdclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/util"

	"go.uber.org/zap"
)

const defaultMaxAttempts = 16

// ErrContention is returned when every compare-and-swap attempt lost to a
// concurrent writer. Nothing was written.
var ErrContention = errors.New("seat counter contention")

type seatCounter struct {
	Available int `json:"available"`
	Max       int `json:"max"`
}

// SeatStore keeps per-event seat counters in etcd. Every mutation is a
// read followed by a transaction guarded on the key's mod revision.
type SeatStore struct {
	kv          KV
	maxAttempts int
	logger      *zap.Logger
}

// NewSeatStore creates a seat store on top of kv
func NewSeatStore(kv KV) *SeatStore {
	return &SeatStore{
		kv:          kv,
		maxAttempts: defaultMaxAttempts,
		logger:      util.GetLogger(),
	}
}

func seatKey(eventID string) string {
	return fmt.Sprintf("seats/%s", eventID)
}

// InitSeats seeds the counter of a new event at full capacity
func (s *SeatStore) InitSeats(ctx context.Context, eventID string, seats int) error {
	value, err := json.Marshal(seatCounter{Available: seats, Max: seats})
	if err != nil {
		return err
	}

	created, err := s.kv.Create(ctx, seatKey(eventID), value)
	if err != nil {
		return fmt.Errorf("failed to seed seats for event %s: %w", eventID, err)
	}
	if !created {
		return fmt.Errorf("seat counter for event %s already exists", eventID)
	}
	return nil
}

// DecrementSeats removes quantity seats if at least that many are available
func (s *SeatStore) DecrementSeats(ctx context.Context, eventID string, quantity int) (int, bool, error) {
	return s.update(ctx, eventID, func(c seatCounter) (seatCounter, bool) {
		if c.Available < quantity {
			return c, false
		}
		c.Available -= quantity
		return c, true
	})
}

// IncrementSeats returns quantity seats unless that would exceed capacity
func (s *SeatStore) IncrementSeats(ctx context.Context, eventID string, quantity int) (int, bool, error) {
	return s.update(ctx, eventID, func(c seatCounter) (seatCounter, bool) {
		if c.Available+quantity > c.Max {
			return c, false
		}
		c.Available += quantity
		return c, true
	})
}

// AvailableSeats reads the current counter
func (s *SeatStore) AvailableSeats(ctx context.Context, eventID string) (int, error) {
	c, _, err := s.read(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return c.Available, nil
}

// update retries only when the transaction lost the revision race. A failed
// transaction call is returned as is since its outcome is unknown.
func (s *SeatStore) update(ctx context.Context, eventID string, apply func(seatCounter) (seatCounter, bool)) (int, bool, error) {
	key := seatKey(eventID)

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		current, rev, err := s.read(ctx, eventID)
		if err != nil {
			return 0, false, err
		}

		next, ok := apply(current)
		if !ok {
			return current.Available, false, nil
		}

		value, err := json.Marshal(next)
		if err != nil {
			return 0, false, err
		}

		swapped, err := s.kv.CompareAndSwap(ctx, key, rev, value)
		if err != nil {
			return 0, false, fmt.Errorf("seat transaction for event %s: %w", eventID, err)
		}
		if swapped {
			return next.Available, true, nil
		}

		s.logger.Debug("Seat counter CAS lost, retrying",
			zap.String("event_id", eventID),
			zap.Int("attempt", attempt+1))
	}

	return 0, false, fmt.Errorf("event %s after %d attempts: %w", eventID, s.maxAttempts, ErrContention)
}

func (s *SeatStore) read(ctx context.Context, eventID string) (seatCounter, int64, error) {
	raw, rev, found, err := s.kv.Get(ctx, seatKey(eventID))
	if err != nil {
		return seatCounter{}, 0, fmt.Errorf("failed to read seats for event %s: %w", eventID, err)
	}
	if !found {
		return seatCounter{}, 0, fmt.Errorf("seat counter for event %s: %w", eventID, models.ErrNotFound)
	}

	var c seatCounter
	if err := json.Unmarshal(raw, &c); err != nil {
		return seatCounter{}, 0, fmt.Errorf("corrupt seat counter for event %s: %w", eventID, err)
	}
	return c, rev, nil
}
