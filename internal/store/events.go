package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yugal82/sports-screening-server/internal/models"
)

const eventColumns = `id, owner_id, category, title, venue_name, venue_address, venue_city,
	starts_at, timezone, max_occupancy, available_seats, ticket_price, currency, details,
	created_at, updated_at`

type eventRow struct {
	ID             string    `db:"id"`
	OwnerID        string    `db:"owner_id"`
	Category       string    `db:"category"`
	Title          string    `db:"title"`
	VenueName      string    `db:"venue_name"`
	VenueAddress   string    `db:"venue_address"`
	VenueCity      string    `db:"venue_city"`
	StartsAt       time.Time `db:"starts_at"`
	Timezone       string    `db:"timezone"`
	MaxOccupancy   int       `db:"max_occupancy"`
	AvailableSeats int       `db:"available_seats"`
	TicketPrice    int64     `db:"ticket_price"`
	Currency       string    `db:"currency"`
	Details        []byte    `db:"details"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *eventRow) toModel() (*models.Event, error) {
	category := models.Category(r.Category)
	details, err := models.DecodeDetails(category, r.Details)
	if err != nil {
		return nil, fmt.Errorf("event %s has corrupt details: %w", r.ID, err)
	}

	return &models.Event{
		ID:       r.ID,
		OwnerID:  r.OwnerID,
		Category: category,
		Title:    r.Title,
		Venue: models.Venue{
			Name:    r.VenueName,
			Address: r.VenueAddress,
			City:    r.VenueCity,
		},
		StartsAt:       r.StartsAt,
		Timezone:       r.Timezone,
		MaxOccupancy:   r.MaxOccupancy,
		AvailableSeats: r.AvailableSeats,
		TicketPrice:    r.TicketPrice,
		Currency:       r.Currency,
		Details:        details,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

// CreateEvent inserts a new event with available_seats = max_occupancy
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode event details: %w", err)
	}

	query := `
		INSERT INTO events (id, owner_id, category, title, venue_name, venue_address, venue_city,
			starts_at, timezone, max_occupancy, available_seats, ticket_price, currency, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $11, $12, $13)
		RETURNING available_seats, created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		event.ID, event.OwnerID, string(event.Category), event.Title,
		event.Venue.Name, event.Venue.Address, event.Venue.City,
		event.StartsAt, event.Timezone, event.MaxOccupancy,
		event.TicketPrice, event.Currency, details)

	return row.Scan(&event.AvailableSeats, &event.CreatedAt, &event.UpdatedAt)
}

// GetEvent retrieves an event by ID
func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, "SELECT "+eventColumns+" FROM events WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

// ListUpcomingEvents returns events starting after from, soonest first
func (s *Store) ListUpcomingEvents(ctx context.Context, from time.Time, category models.Category, limit int) ([]models.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+eventColumns+` FROM events
		 WHERE starts_at > $1 AND ($2 = '' OR category = $2)
		 ORDER BY starts_at ASC LIMIT $3`,
		from, string(category), limit)
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, nil
}

// DecrementSeats takes quantity seats in one conditional update. When the
// update does not apply, remaining is the count read afterwards.
func (s *Store) DecrementSeats(ctx context.Context, eventID string, quantity int) (int, bool, error) {
	var remaining int
	err := s.db.GetContext(ctx, &remaining, `
		UPDATE events SET available_seats = available_seats - $1, updated_at = NOW()
		WHERE id = $2 AND available_seats >= $1
		RETURNING available_seats`,
		quantity, eventID)
	if err == nil {
		return remaining, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to decrement seats: %w", err)
	}
	return s.notApplied(ctx, eventID)
}

// IncrementSeats returns quantity seats unless that would exceed max_occupancy
func (s *Store) IncrementSeats(ctx context.Context, eventID string, quantity int) (int, bool, error) {
	var remaining int
	err := s.db.GetContext(ctx, &remaining, `
		UPDATE events SET available_seats = available_seats + $1, updated_at = NOW()
		WHERE id = $2 AND available_seats + $1 <= max_occupancy
		RETURNING available_seats`,
		quantity, eventID)
	if err == nil {
		return remaining, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to increment seats: %w", err)
	}
	return s.notApplied(ctx, eventID)
}

func (s *Store) notApplied(ctx context.Context, eventID string) (int, bool, error) {
	current, err := s.AvailableSeats(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return 0, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read seats after rejected update: %w", err)
	}
	return current, false, nil
}

// AvailableSeats reads the current seat counter
func (s *Store) AvailableSeats(ctx context.Context, eventID string) (int, error) {
	var available int
	err := s.db.GetContext(ctx, &available, "SELECT available_seats FROM events WHERE id = $1", eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
	}
	return available, err
}

// SeatSnapshot compares an event's counter with the seats held by its bookings
type SeatSnapshot struct {
	EventID        string `db:"event_id"`
	MaxOccupancy   int    `db:"max_occupancy"`
	AvailableSeats int    `db:"available_seats"`
	Held           int    `db:"held"`
}

// Expected is the counter value implied by the bookings
func (s SeatSnapshot) Expected() int {
	return s.MaxOccupancy - s.Held
}

// SeatSnapshots returns one snapshot per event that has not started yet
func (s *Store) SeatSnapshots(ctx context.Context, from time.Time) ([]SeatSnapshot, error) {
	var snaps []SeatSnapshot
	err := s.db.SelectContext(ctx, &snaps, `
		SELECT e.id AS event_id, e.max_occupancy, e.available_seats,
			COALESCE(SUM(b.quantity) FILTER (WHERE b.status IN ('pending', 'confirmed')), 0) AS held
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id
		WHERE e.starts_at > $1
		GROUP BY e.id, e.max_occupancy, e.available_seats
		ORDER BY e.id`,
		from)
	return snaps, err
}
