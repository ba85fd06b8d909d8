package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxOccupancyLimit = 100000
	defaultListLimit  = 50
	maxListLimit      = 200
)

// EventStore persists events
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListUpcomingEvents(ctx context.Context, from time.Time, category models.Category, limit int) ([]models.Event, error)
}

// SeatSeeder initialises a seat counter held outside Postgres
type SeatSeeder interface {
	InitSeats(ctx context.Context, eventID string, seats int) error
}

// EventService publishes and lists screenings
type EventService struct {
	store  EventStore
	ledger *InventoryLedger
	seeder SeatSeeder
	logger *zap.Logger
	now    func() time.Time
}

// NewEventService creates a new event service. seeder may be nil.
func NewEventService(store EventStore, ledger *InventoryLedger, seeder SeatSeeder) *EventService {
	return &EventService{
		store:  store,
		ledger: ledger,
		seeder: seeder,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// CreateEventRequest represents a new screening
type CreateEventRequest struct {
	Title        string          `json:"title"`
	Category     models.Category `json:"category"`
	Venue        models.Venue    `json:"venue"`
	StartsAt     time.Time       `json:"startsAt"`
	Timezone     string          `json:"timezone"`
	MaxOccupancy int             `json:"maxOccupancy"`
	TicketPrice  int64           `json:"ticketPrice"`
	Currency     string          `json:"currency"`
	Details      json.RawMessage `json:"details"`
}

// CreateEvent publishes a screening owned by actor
func (s *EventService) CreateEvent(ctx context.Context, actor *models.Actor, req CreateEventRequest) (*models.Event, error) {
	ctx, span := util.StartSpan(ctx, "EventService.CreateEvent")
	defer span.End()

	if actor == nil {
		return nil, models.ErrUnauthorized
	}
	if !actor.CanPublishEvents() {
		return nil, fmt.Errorf("role %q cannot publish events: %w", actor.Role, models.ErrForbidden)
	}

	event, err := s.buildEvent(actor, req)
	if err != nil {
		return nil, err
	}

	// the counter exists before the event is visible; a counter without an
	// event row is never read
	if s.seeder != nil {
		if err := s.seeder.InitSeats(ctx, event.ID, event.MaxOccupancy); err != nil {
			s.logger.Error("Failed to seed seat counter",
				zap.String("event_id", event.ID),
				zap.Error(err))
			return nil, fmt.Errorf("failed to seed seats: %w", models.ErrUpstreamUnavailable)
		}
	}

	if err := s.store.CreateEvent(ctx, event); err != nil {
		util.RecordError(span, err)
		if s.seeder != nil {
			s.logger.Warn("Seat counter left without an event", zap.String("event_id", event.ID))
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.Info("Event created",
		zap.String("event_id", event.ID),
		zap.String("owner_id", event.OwnerID),
		zap.String("category", string(event.Category)),
		zap.Int("max_occupancy", event.MaxOccupancy))
	return event, nil
}

func (s *EventService) buildEvent(actor *models.Actor, req CreateEventRequest) (*models.Event, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, models.Validationf("title is required")
	}
	if strings.TrimSpace(req.Venue.Name) == "" {
		return nil, models.Validationf("venue name is required")
	}
	if req.StartsAt.IsZero() || !req.StartsAt.After(s.now()) {
		return nil, models.Validationf("startsAt must be in the future")
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil || req.Timezone == "" {
		return nil, models.Validationf("timezone %q is not a valid IANA zone", req.Timezone)
	}
	if req.MaxOccupancy < 1 || req.MaxOccupancy > maxOccupancyLimit {
		return nil, models.Validationf("maxOccupancy must be between 1 and %d", maxOccupancyLimit)
	}
	if req.TicketPrice < 0 {
		return nil, models.Validationf("ticketPrice cannot be negative")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return nil, models.Validationf("currency must be a 3 letter code")
	}

	details, err := models.DecodeDetails(req.Category, req.Details)
	if err != nil {
		return nil, err
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}

	return &models.Event{
		ID:             uuid.New().String(),
		OwnerID:        actor.ID,
		Category:       req.Category,
		Title:          title,
		Venue:          req.Venue,
		StartsAt:       req.StartsAt.UTC(),
		Timezone:       req.Timezone,
		MaxOccupancy:   req.MaxOccupancy,
		AvailableSeats: req.MaxOccupancy,
		TicketPrice:    req.TicketPrice,
		Currency:       currency,
		Details:        details,
	}, nil
}

// GetEvent returns an event with its seat count read from the ledger
func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.refreshAvailability(ctx, event)
	return event, nil
}

// ListUpcoming lists events that have not started, optionally by category
func (s *EventService) ListUpcoming(ctx context.Context, category models.Category, limit int) ([]models.Event, error) {
	if category != "" && !category.Valid() {
		return nil, models.Validationf("unknown category %q", category)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	events, err := s.store.ListUpcomingEvents(ctx, s.now(), category, limit)
	if err != nil {
		return nil, err
	}
	for i := range events {
		s.refreshAvailability(ctx, &events[i])
	}
	return events, nil
}

// refreshAvailability prefers the ledger's counter; the stored value is kept
// when the ledger cannot be read
func (s *EventService) refreshAvailability(ctx context.Context, event *models.Event) {
	if s.ledger == nil {
		return
	}
	n, err := s.ledger.Available(ctx, event.ID)
	if err != nil {
		s.logger.Warn("Availability read failed",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return
	}
	event.AvailableSeats = n
}
