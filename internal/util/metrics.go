package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created in pending state",
	})

	BookingsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_confirmed_total",
		Help: "Total number of bookings confirmed by a payment callback",
	})

	BookingsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_cancelled_total",
		Help: "Total number of cancelled bookings",
	}, []string{"reason"})

	BookingsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_failed_total",
		Help: "Total number of booking requests that did not produce a booking",
	}, []string{"reason"})

	LedgerOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_latency_seconds",
		Help:    "Latency of inventory ledger operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	LedgerRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_rejections_total",
		Help: "Ledger mutations refused by the conditional update",
	}, []string{"op", "reason"})

	InvariantViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_invariant_violations_total",
		Help: "Release attempts that would push available seats above capacity",
	})

	RateLimitDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Rate governor decisions per action class",
	}, []string{"action", "decision"})

	DegradedModeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "degraded_mode_total",
		Help: "Requests served in degraded mode because a dependency was unavailable",
	}, []string{"component"})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Read-through cache lookups",
	}, []string{"cache", "result"})

	RefundFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refund_failures_total",
		Help: "Refund requests rejected or not delivered to the payment provider",
	})

	ReconciliationRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_records_total",
		Help: "Cases journaled for manual reconciliation",
	}, []string{"reason"})

	PaymentCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Payment callbacks handled",
	}, []string{"outcome", "result"})

	SeatDriftEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seat_drift_events",
		Help: "Upcoming events whose available seats disagree with max occupancy minus held seats",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
