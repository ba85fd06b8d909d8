// Package ratelimit implements fixed-window request governing on top of a
// shared counter store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/yugal82/sports-screening-server/internal/util"

	"go.uber.org/zap"
)

// ActionClass groups requests that share one window and ceiling
type ActionClass string

const (
	ActionAuth          ActionClass = "auth"
	ActionBookingCreate ActionClass = "booking_create"
	ActionEventCreate   ActionClass = "event_create"
)

// Policy is the ceiling for one action class within a fixed window
type Policy struct {
	Limit  int64
	Window time.Duration
}

// CounterStore is the atomic increment-with-expiry primitive
type CounterStore interface {
	IncrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
	Degraded   bool
}

// Governor enforces per-actor fixed windows
type Governor struct {
	store        CounterStore
	policies     map[ActionClass]Policy
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewGovernor creates a governor. storeTimeout bounds each counter round-trip
// so a slow store degrades into fail-open instead of stalling requests.
func NewGovernor(store CounterStore, policies map[ActionClass]Policy, storeTimeout time.Duration) *Governor {
	return &Governor{
		store:        store,
		policies:     policies,
		storeTimeout: storeTimeout,
		logger:       util.GetLogger(),
	}
}

// Key returns the counter key for an action class and actor
func Key(class ActionClass, actorKey string) string {
	return fmt.Sprintf("ratelimit:%s:%s", class, actorKey)
}

// ActorKey prefers the authenticated principal and falls back to the client address
func ActorKey(userID, clientIP string) string {
	if userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientIP
}

// Allow counts the request and reports whether it fits in the current window.
// Counter store failures allow the request.
func (g *Governor) Allow(ctx context.Context, class ActionClass, actorKey string) Decision {
	policy, ok := g.policies[class]
	if !ok || policy.Limit <= 0 || policy.Window <= 0 {
		g.logger.Warn("No rate limit policy for action class, allowing",
			zap.String("action", string(class)))
		return Decision{Allowed: true}
	}

	if g.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.storeTimeout)
		defer cancel()
	}

	count, ttl, err := g.store.IncrWithExpiry(ctx, Key(class, actorKey), policy.Window)
	if err != nil {
		g.logger.Warn("Counter store unavailable, rate limiting degraded to fail-open",
			zap.String("action", string(class)),
			zap.String("actor", actorKey),
			zap.Bool("degraded", true),
			zap.Error(err))
		util.DegradedModeTotal.WithLabelValues("rate_governor").Inc()
		util.RateLimitDecisionsTotal.WithLabelValues(string(class), "degraded").Inc()
		return Decision{Allowed: true, Limit: policy.Limit, Degraded: true}
	}

	if count > policy.Limit {
		retryAfter := ttl
		if retryAfter <= 0 || retryAfter > policy.Window {
			retryAfter = policy.Window
		}
		util.RateLimitDecisionsTotal.WithLabelValues(string(class), "denied").Inc()
		return Decision{
			Allowed:    false,
			Count:      count,
			Limit:      policy.Limit,
			RetryAfter: retryAfter,
		}
	}

	util.RateLimitDecisionsTotal.WithLabelValues(string(class), "allowed").Inc()
	return Decision{Allowed: true, Count: count, Limit: policy.Limit}
}

// Remaining reports how many more requests fit in the window
func (d Decision) Remaining() int64 {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}
