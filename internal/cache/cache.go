// Package cache is the process-local TTL cache in front of the standings
// aggregations.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/abrezinsky/standings/internal/metrics"
)

// DefaultTTL is how long a computed value is served before recomputing
const DefaultTTL = 5 * time.Minute

type entry struct {
	value    any
	storedAt time.Time
}

// Cache maps string keys to computed values. Entries expire after the TTL
// and expired entries are swept at most once per TTL when a value is stored.
type Cache struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu        sync.RWMutex
	entries   map[string]entry
	gen       uint64
	lastSweep time.Time

	group singleflight.Group
}

// New creates a cache. A nil clock uses the real clock; a non-positive ttl
// uses DefaultTTL.
func New(ttl time.Duration, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// TTL returns the configured time-to-live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.clock.Since(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// set stores value unless Clear ran after the computation started
func (c *Cache) set(key string, value any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	now := c.clock.Now()
	if now.Sub(c.lastSweep) >= c.ttl {
		for k, e := range c.entries {
			if now.Sub(e.storedAt) >= c.ttl {
				delete(c.entries, k)
			}
		}
		c.lastSweep = now
	}
	c.entries[key] = entry{value: value, storedAt: now}
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.gen++
}

// Len returns the number of stored entries, expired ones not yet swept
// included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fetch returns the fresh value stored under key or computes, stores and
// returns a new one. Concurrent misses for the same key share a single
// computation, which is detached from the cancellation of the caller that
// started it. Errors are returned to every waiter and never stored.
func Fetch[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error)) (T, error) {
	if v, ok := c.get(key); ok {
		if typed, ok := v.(T); ok {
			metrics.CacheRequests.WithLabelValues(metrics.Hit).Inc()
			return typed, nil
		}
	}
	metrics.CacheRequests.WithLabelValues(metrics.Miss).Inc()

	gen := c.generation()
	flight := strconv.FormatUint(gen, 10) + "|" + key
	v, err, _ := c.group.Do(flight, func() (any, error) {
		value, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.set(key, value, gen)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}
