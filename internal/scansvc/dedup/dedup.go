package dedup

import (
	"sync"
	"time"
)

const (
	DefaultCooldown   = 3 * time.Second
	defaultPruneLimit = 1000
)

// Cache remembers when each barcode was last accepted so that a scanner
// firing the same code several times in a row produces a single task.
// The check and the timestamp update are a single atomic step per code.
type Cache struct {
	mu         sync.Mutex
	lastSeen   map[string]time.Time
	cooldown   time.Duration
	pruneLimit int
	now        func() time.Time
}

func NewCache(cooldown time.Duration) *Cache {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Cache{
		lastSeen:   make(map[string]time.Time),
		cooldown:   cooldown,
		pruneLimit: defaultPruneLimit,
		now:        time.Now,
	}
}

// IsRecentDuplicate reports whether code was accepted within the cooldown
// window. A duplicate leaves the stored timestamp untouched; a fresh code
// records the current time before returning.
func (c *Cache) IsRecentDuplicate(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if ts, ok := c.lastSeen[code]; ok && now.Sub(ts) < c.cooldown {
		return true
	}
	c.lastSeen[code] = now

	// light pruning, amortized: entries only leave once the map grows past
	// the limit, so a quiet cache can hold stale codes indefinitely
	if len(c.lastSeen) > c.pruneLimit {
		cutoff := now.Add(-c.cooldown)
		for k, ts := range c.lastSeen {
			if ts.Before(cutoff) {
				delete(c.lastSeen, k)
			}
		}
	}
	return false
}

// Reset forgets every code. Paired with the recent-activity clear so the
// operator can start fresh.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = make(map[string]time.Time)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastSeen)
}
