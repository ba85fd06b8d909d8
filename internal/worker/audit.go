package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/store"
	"github.com/yugal82/sports-screening-server/internal/util"

	"go.uber.org/zap"
)

// SnapshotSource lists seat counters next to the seats their bookings hold
type SnapshotSource interface {
	SeatSnapshots(ctx context.Context, from time.Time) ([]store.SeatSnapshot, error)
}

// SeatAuditWorker periodically checks available = max - held for every
// upcoming event and reports drift. Bookings in flight differ from their
// counter for a moment, so only drift seen unchanged by two consecutive runs
// is reported. It never corrects a counter.
type SeatAuditWorker struct {
	source   SnapshotSource
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	// suspects maps event id to the offset seen by the previous run
	suspects map[string]int

	stopOnce sync.Once
	stop     chan struct{}
}

// NewSeatAuditWorker creates a new audit worker
func NewSeatAuditWorker(source SnapshotSource, interval time.Duration) *SeatAuditWorker {
	return &SeatAuditWorker{
		source:   source,
		interval: interval,
		logger:   util.GetLogger(),
		now:      time.Now,
		suspects: make(map[string]int),
		stop:     make(chan struct{}),
	}
}

// Start runs an audit every interval until ctx is cancelled or Stop is called
func (w *SeatAuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting seat audit worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stop:
			return nil
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Warn("Seat audit failed", zap.Error(err))
			}
		}
	}
}

// Stop ends Start
func (w *SeatAuditWorker) Stop() error {
	w.stopOnce.Do(func() { close(w.stop) })
	return nil
}

// RunOnce audits all upcoming events and returns the ones whose drift was
// also seen by the previous run. It is not safe for concurrent use.
func (w *SeatAuditWorker) RunOnce(ctx context.Context) ([]store.SeatSnapshot, error) {
	snaps, err := w.source.SeatSnapshots(ctx, w.now())
	if err != nil {
		return nil, err
	}

	var drifted []store.SeatSnapshot
	suspects := make(map[string]int)
	for _, s := range snaps {
		offset := s.AvailableSeats - s.Expected()
		if offset == 0 {
			continue
		}
		suspects[s.EventID] = offset
		if prev, ok := w.suspects[s.EventID]; !ok || prev != offset {
			w.logger.Debug("Seat counter differs from bookings, rechecking next run",
				zap.String("event_id", s.EventID),
				zap.Int("offset", offset))
			continue
		}
		drifted = append(drifted, s)
		w.logger.Error("Seat counter drift detected",
			zap.Bool("invariant", true),
			zap.String("event_id", s.EventID),
			zap.Int("available", s.AvailableSeats),
			zap.Int("expected", s.Expected()),
			zap.Int("held", s.Held),
			zap.Int("max_occupancy", s.MaxOccupancy))
	}
	w.suspects = suspects
	util.SeatDriftEvents.Set(float64(len(drifted)))
	return drifted, nil
}

func isUpstream(err error) bool {
	return errors.Is(err, models.ErrUpstreamUnavailable)
}
