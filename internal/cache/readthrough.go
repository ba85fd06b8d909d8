// Package cache provides an advisory read-through cache over a shared
// key/value store. Losing the store only costs latency: every read has a
// loader fallback.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/yugal82/sports-screening-server/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store is the subset of the counter/cache store used by the cache
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Loader fetches the authoritative value on a miss
type Loader[T any] func(ctx context.Context) (T, error)

// ReadThrough caches JSON snapshots of T keyed by subject id
type ReadThrough[T any] struct {
	store  Store
	name   string
	minTTL time.Duration
	now    func() time.Time
	group  singleflight.Group
	logger *zap.Logger

	// generations counts invalidations per subject. A load only saves its
	// result if no invalidation happened while it ran.
	mu          sync.Mutex
	generations map[string]uint64
}

// New creates a read-through cache. name prefixes every key.
func New[T any](store Store, name string, minTTL time.Duration) *ReadThrough[T] {
	return &ReadThrough[T]{
		store:  store,
		name:   name,
		minTTL: minTTL,
		now:    time.Now,
		logger: util.GetLogger().With(zap.String("cache", name)),

		generations: make(map[string]uint64),
	}
}

func (c *ReadThrough[T]) key(subjectID string) string {
	return "cache:" + c.name + ":" + subjectID
}

// TTL returns max(expiry - now, minTTL)
func (c *ReadThrough[T]) TTL(expiry time.Time) time.Duration {
	ttl := expiry.Sub(c.now())
	if ttl < c.minTTL {
		return c.minTTL
	}
	return ttl
}

// Get returns the cached snapshot for subjectID, invoking loader on a miss.
// expiry is the expiry of the token that authorised the read.
func (c *ReadThrough[T]) Get(ctx context.Context, subjectID string, expiry time.Time, loader Loader[T]) (T, error) {
	if value, ok := c.lookup(ctx, subjectID); ok {
		util.CacheRequestsTotal.WithLabelValues(c.name, "hit").Inc()
		return value, nil
	}
	util.CacheRequestsTotal.WithLabelValues(c.name, "miss").Inc()

	// concurrent misses for one subject share a single loader call
	v, err, _ := c.group.Do(subjectID, func() (interface{}, error) {
		if value, ok := c.lookup(ctx, subjectID); ok {
			return value, nil
		}

		gen := c.generation(subjectID)
		value, err := loader(ctx)
		if err != nil {
			return value, err
		}
		if c.generation(subjectID) != gen {
			c.logger.Debug("Skipping cache write for invalidated subject", zap.String("subject_id", subjectID))
			return value, nil
		}
		c.save(ctx, subjectID, value, c.TTL(expiry))
		// an Invalidate that raced the write bumps the generation before deleting
		if c.generation(subjectID) != gen {
			_ = c.store.Delete(ctx, c.key(subjectID))
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate removes the cached entry for subjectID
func (c *ReadThrough[T]) Invalidate(ctx context.Context, subjectID string) error {
	c.mu.Lock()
	c.generations[subjectID]++
	c.mu.Unlock()

	c.group.Forget(subjectID)
	if err := c.store.Delete(ctx, c.key(subjectID)); err != nil {
		c.logger.Error("Failed to invalidate cache entry",
			zap.String("subject_id", subjectID),
			zap.Error(err))
		return err
	}
	return nil
}

func (c *ReadThrough[T]) generation(subjectID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[subjectID]
}

func (c *ReadThrough[T]) lookup(ctx context.Context, subjectID string) (T, bool) {
	var value T

	raw, found, err := c.store.Get(ctx, c.key(subjectID))
	if err != nil {
		c.logger.Warn("Cache read failed, falling back to loader",
			zap.String("subject_id", subjectID),
			zap.Bool("degraded", true),
			zap.Error(err))
		util.DegradedModeTotal.WithLabelValues("cache").Inc()
		return value, false
	}
	if !found {
		return value, false
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Warn("Discarding undecodable cache entry",
			zap.String("subject_id", subjectID),
			zap.Error(err))
		return value, false
	}
	return value, true
}

func (c *ReadThrough[T]) save(ctx context.Context, subjectID string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to encode cache entry", zap.String("subject_id", subjectID), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, c.key(subjectID), raw, ttl); err != nil {
		c.logger.Warn("Cache write failed",
			zap.String("subject_id", subjectID),
			zap.Bool("degraded", true),
			zap.Error(err))
		util.DegradedModeTotal.WithLabelValues("cache").Inc()
	}
}
