package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/reconcile"
)

var admin = &models.Actor{ID: "admin-1", Role: models.RoleAdmin}

func TestReconciliation_ResolveReleasesOnce(t *testing.T) {
	seats := newMemSeats()
	seats.add("evt-1", 10, 6)
	journal := &fakeJournal{}
	rec, _ := journal.Record(reconcile.Record{BookingID: "bk-1", EventID: "evt-1", Quantity: 4, Reason: reconcile.ReasonCancelReleaseFailed})
	svc := NewReconciliationService(journal, NewInventoryLedger(seats, nil))

	resolved, err := svc.Resolve(context.Background(), admin, rec.ID)
	require.NoError(t, err)
	assert.False(t, resolved.Open())
	assert.Equal(t, "admin-1", resolved.ResolvedBy)
	assert.Equal(t, 10, seats.get("evt-1"))

	_, err = svc.Resolve(context.Background(), admin, rec.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 10, seats.get("evt-1"))

	open, err := svc.List(context.Background(), admin, false)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestReconciliation_ReleaseFailureKeepsRecordOpen(t *testing.T) {
	seats := newMemSeats()
	seats.add("evt-1", 10, 6)
	seats.releaseErr = errors.New("still down")
	journal := &fakeJournal{}
	rec, _ := journal.Record(reconcile.Record{BookingID: "bk-1", EventID: "evt-1", Quantity: 4})
	svc := NewReconciliationService(journal, NewInventoryLedger(seats, nil))

	_, err := svc.Resolve(context.Background(), admin, rec.ID)

	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	open, err := svc.List(context.Background(), admin, false)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestReconciliation_AdminOnly(t *testing.T) {
	svc := NewReconciliationService(&fakeJournal{}, NewInventoryLedger(newMemSeats(), nil))

	_, err := svc.List(context.Background(), alice, false)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.Resolve(context.Background(), nil, "rec-1")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = svc.Resolve(context.Background(), admin, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
