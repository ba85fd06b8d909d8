package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/reconcile"
	"github.com/yugal82/sports-screening-server/internal/util"

	"go.uber.org/zap"
)

// ReconciliationJournal is the admin view of the journal
type ReconciliationJournal interface {
	Get(id string) (*reconcile.Record, error)
	List(includeResolved bool) ([]reconcile.Record, error)
	MarkResolved(id, resolvedBy string) (*reconcile.Record, error)
}

// ReconciliationService lets an admin settle journaled seat releases
type ReconciliationService struct {
	journal ReconciliationJournal
	ledger  *InventoryLedger
	logger  *zap.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(journal ReconciliationJournal, ledger *InventoryLedger) *ReconciliationService {
	return &ReconciliationService{journal: journal, ledger: ledger, logger: util.GetLogger()}
}

// List returns open records, or every record when includeResolved is set
func (s *ReconciliationService) List(ctx context.Context, actor *models.Actor, includeResolved bool) ([]reconcile.Record, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.journal.List(includeResolved)
}

// Resolve issues the owed release once and closes the record. The record
// stays open when the release fails.
func (s *ReconciliationService) Resolve(ctx context.Context, actor *models.Actor, id string) (*reconcile.Record, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	rec, err := s.journal.Get(id)
	if err != nil {
		return nil, journalError(err)
	}
	if !rec.Open() {
		return nil, journalError(reconcile.ErrAlreadyResolved)
	}

	if _, err := s.ledger.Release(ctx, rec.EventID, rec.Quantity); err != nil {
		s.logger.Error("Reconciliation release failed",
			zap.String("record_id", rec.ID),
			zap.String("event_id", rec.EventID),
			zap.Error(err))
		return nil, err
	}

	resolved, err := s.journal.MarkResolved(id, actor.ID)
	if err != nil {
		// seats are back; the record must not be replayed
		s.logger.Error("Seats released but record not closed",
			zap.String("record_id", rec.ID),
			zap.Error(err))
		return nil, journalError(err)
	}

	s.logger.Info("Reconciliation record resolved",
		zap.String("record_id", rec.ID),
		zap.String("booking_id", rec.BookingID),
		zap.Int("quantity", rec.Quantity),
		zap.String("resolved_by", actor.ID))
	return resolved, nil
}

func requireAdmin(actor *models.Actor) error {
	if actor == nil {
		return models.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("admin role required: %w", models.ErrForbidden)
	}
	return nil
}

func journalError(err error) error {
	switch {
	case errors.Is(err, reconcile.ErrNotFound):
		return fmt.Errorf("%v: %w", err, models.ErrNotFound)
	case errors.Is(err, reconcile.ErrAlreadyResolved):
		return fmt.Errorf("%v: %w", err, models.ErrInvalidTransition)
	default:
		return fmt.Errorf("reconciliation journal: %w", errors.Join(models.ErrUpstreamUnavailable, err))
	}
}
