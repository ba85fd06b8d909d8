package payment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/util"

	"github.com/google/uuid"
	"github.com/lucsky/cuid"
	"go.uber.org/zap"
)

// CallbackPublisher delivers simulated provider callbacks
type CallbackPublisher interface {
	PublishPaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// SimulatedGateway accepts every charge and settles it a little later with
// a configurable success rate. Used for local development.
type SimulatedGateway struct {
	callbacks   CallbackPublisher
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	refunded map[string]bool
	wg       sync.WaitGroup
	stop     chan struct{}
}

// NewSimulatedGateway creates a new simulated gateway
func NewSimulatedGateway(callbacks CallbackPublisher, successRate float64) *SimulatedGateway {
	return &SimulatedGateway{
		callbacks:   callbacks,
		successRate: successRate,
		minDelay:    100 * time.Millisecond,
		maxDelay:    500 * time.Millisecond,
		logger:      util.GetLogger(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		refunded:    make(map[string]bool),
		stop:        make(chan struct{}),
	}
}

// Charge issues a handle and settles it asynchronously
func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	_, span := util.StartSpan(ctx, "SimulatedGateway.Charge")
	defer span.End()

	handle := "pay_" + cuid.New()

	g.mu.Lock()
	delay := g.minDelay
	if spread := g.maxDelay - g.minDelay; spread > 0 {
		delay += time.Duration(g.rng.Int63n(int64(spread)))
	}
	success := g.rng.Float64() < g.successRate
	g.mu.Unlock()

	g.logger.Info("Simulated charge accepted",
		zap.String("booking_id", req.BookingID),
		zap.String("payment_ref", handle),
		zap.Int64("amount", req.Amount))

	g.wg.Add(1)
	go g.settle(handle, req, delay, success)

	return handle, nil
}

func (g *SimulatedGateway) settle(handle string, req ChargeRequest, delay time.Duration, success bool) {
	defer g.wg.Done()

	select {
	case <-g.stop:
		return
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	base := models.BaseEvent{EventID: uuid.New().String(), Timestamp: time.Now()}

	var err error
	if success {
		base.EventType = models.EventTypePaymentSucceeded
		err = g.callbacks.PublishPaymentSucceeded(ctx, &models.PaymentSucceededEvent{
			BaseEvent:  base,
			PaymentRef: handle,
			BookingID:  req.BookingID,
			Amount:     req.Amount,
		})
	} else {
		base.EventType = models.EventTypePaymentFailed
		err = g.callbacks.PublishPaymentFailed(ctx, &models.PaymentFailedEvent{
			BaseEvent:  base,
			PaymentRef: handle,
			BookingID:  req.BookingID,
			Reason:     "simulated_decline",
		})
	}
	if err != nil {
		g.logger.Error("Failed to publish simulated payment callback",
			zap.String("payment_ref", handle),
			zap.Error(err))
	}
}

// Refund marks the handle refunded; a second refund is declined
func (g *SimulatedGateway) Refund(ctx context.Context, handle string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.refunded[handle] {
		return ErrDeclined
	}
	g.refunded[handle] = true
	g.logger.Info("Simulated refund issued", zap.String("payment_ref", handle))
	return nil
}

// Close stops pending settlements and waits for in-flight ones
func (g *SimulatedGateway) Close() {
	close(g.stop)
	g.wg.Wait()
}
