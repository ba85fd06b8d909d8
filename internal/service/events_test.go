package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugal82/sports-screening-server/internal/models"
)

type fakeSeeder struct {
	seeded map[string]int
	err    error
}

func (f *fakeSeeder) InitSeats(_ context.Context, eventID string, seats int) error {
	if f.err != nil {
		return f.err
	}
	if f.seeded == nil {
		f.seeded = map[string]int{}
	}
	f.seeded[eventID] = seats
	return nil
}

var owner = &models.Actor{ID: "owner-1", Role: models.RoleOwner}

func validEventRequest() CreateEventRequest {
	return CreateEventRequest{
		Title:        "North London Derby",
		Category:     models.CategoryFootball,
		Venue:        models.Venue{Name: "The Anchor", City: "Pune"},
		StartsAt:     testNow.Add(72 * time.Hour),
		Timezone:     "Asia/Kolkata",
		MaxOccupancy: 60,
		TicketPrice:  40000,
		Currency:     "inr",
		Details:      json.RawMessage(`{"homeTeam":"Arsenal","awayTeam":"Spurs","competition":"Premier League"}`),
	}
}

func newEventFixture(seeder SeatSeeder) (*EventService, *memStore, *memSeats) {
	st := newMemStore()
	seats := newMemSeats()
	svc := NewEventService(st, NewInventoryLedger(seats, nil), seeder)
	svc.now = func() time.Time { return testNow }
	return svc, st, seats
}

func TestCreateEvent_Success(t *testing.T) {
	seeder := &fakeSeeder{}
	svc, st, _ := newEventFixture(seeder)

	event, err := svc.CreateEvent(context.Background(), owner, validEventRequest())

	require.NoError(t, err)
	assert.Equal(t, 60, event.AvailableSeats)
	assert.Equal(t, "INR", event.Currency)
	assert.Equal(t, "owner-1", event.OwnerID)
	assert.Equal(t, models.FootballDetails{HomeTeam: "Arsenal", AwayTeam: "Spurs", Competition: "Premier League"}, event.Details)
	assert.Equal(t, 1, st.createdEvents)
	assert.Equal(t, 60, seeder.seeded[event.ID])
}

func TestCreateEvent_RoleRequired(t *testing.T) {
	svc, _, _ := newEventFixture(nil)

	_, err := svc.CreateEvent(context.Background(), alice, validEventRequest())
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.CreateEvent(context.Background(), nil, validEventRequest())
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCreateEvent_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateEventRequest)
	}{
		{"empty title", func(r *CreateEventRequest) { r.Title = "  " }},
		{"no venue", func(r *CreateEventRequest) { r.Venue.Name = "" }},
		{"in the past", func(r *CreateEventRequest) { r.StartsAt = testNow.Add(-time.Minute) }},
		{"bad timezone", func(r *CreateEventRequest) { r.Timezone = "Mars/Olympus" }},
		{"zero capacity", func(r *CreateEventRequest) { r.MaxOccupancy = 0 }},
		{"huge capacity", func(r *CreateEventRequest) { r.MaxOccupancy = maxOccupancyLimit + 1 }},
		{"negative price", func(r *CreateEventRequest) { r.TicketPrice = -1 }},
		{"bad currency", func(r *CreateEventRequest) { r.Currency = "RUPEE" }},
		{"unknown category", func(r *CreateEventRequest) { r.Category = "curling" }},
		{"details for wrong category", func(r *CreateEventRequest) { r.Category = models.CategoryTennis }},
		{"same teams", func(r *CreateEventRequest) {
			r.Details = json.RawMessage(`{"homeTeam":"Arsenal","awayTeam":"arsenal"}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _ := newEventFixture(nil)
			req := validEventRequest()
			tt.mutate(&req)

			_, err := svc.CreateEvent(context.Background(), owner, req)

			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Equal(t, 0, st.createdEvents)
		})
	}
}

func TestCreateEvent_SeedFailure(t *testing.T) {
	svc, st, _ := newEventFixture(&fakeSeeder{err: errors.New("etcd down")})

	_, err := svc.CreateEvent(context.Background(), owner, validEventRequest())

	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.Equal(t, 0, st.createdEvents)
	assert.Empty(t, st.events)
}

func TestGetEvent_AvailabilityFromLedger(t *testing.T) {
	svc, st, seats := newEventFixture(nil)
	st.events["evt-1"] = &models.Event{ID: "evt-1", MaxOccupancy: 10, AvailableSeats: 10, StartsAt: testNow.Add(time.Hour)}
	seats.add("evt-1", 10, 4)

	event, err := svc.GetEvent(context.Background(), "evt-1")

	require.NoError(t, err)
	assert.Equal(t, 4, event.AvailableSeats)
}

func TestListUpcoming(t *testing.T) {
	svc, st, seats := newEventFixture(nil)
	st.events["past"] = &models.Event{ID: "past", Category: models.CategoryCricket, StartsAt: testNow.Add(-time.Hour)}
	st.events["soon"] = &models.Event{ID: "soon", Category: models.CategoryCricket, StartsAt: testNow.Add(time.Hour), MaxOccupancy: 5}
	st.events["tennis"] = &models.Event{ID: "tennis", Category: models.CategoryTennis, StartsAt: testNow.Add(time.Hour)}
	seats.add("soon", 5, 1)

	events, err := svc.ListUpcoming(context.Background(), models.CategoryCricket, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "soon", events[0].ID)
	assert.Equal(t, 1, events[0].AvailableSeats)

	_, err = svc.ListUpcoming(context.Background(), "curling", 10)
	assert.ErrorIs(t, err, models.ErrValidation)
}
