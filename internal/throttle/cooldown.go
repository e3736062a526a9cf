// Package throttle limits how often an action may run per key.
package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const DefaultCooldown = 5 * time.Second

// Limiter decides whether key may act at now.
type Limiter interface {
	TryAcquire(key string, now time.Time) bool
}

type cooldownEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Cooldown allows one action per key per interval.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	entries  map[string]*cooldownEntry
	idleTTL  time.Duration
	lastGC   time.Time
}

func NewCooldown(interval time.Duration) *Cooldown {
	if interval <= 0 {
		interval = DefaultCooldown
	}
	return &Cooldown{
		interval: interval,
		entries:  make(map[string]*cooldownEntry),
		idleTTL:  10 * interval,
	}
}

func (c *Cooldown) Interval() time.Duration {
	return c.interval
}

func (c *Cooldown) TryAcquire(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictIdle(now)

	e, ok := c.entries[key]
	if !ok {
		e = &cooldownEntry{limiter: rate.NewLimiter(rate.Every(c.interval), 1)}
		c.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// evictIdle drops keys whose bucket has long refilled. Caller holds mu.
func (c *Cooldown) evictIdle(now time.Time) {
	if now.Sub(c.lastGC) < c.idleTTL {
		return
	}
	c.lastGC = now
	for key, e := range c.entries {
		if now.Sub(e.lastSeen) > c.idleTTL {
			delete(c.entries, key)
		}
	}
}

func (c *Cooldown) keys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
