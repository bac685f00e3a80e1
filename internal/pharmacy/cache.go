package pharmacy

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

type cacheEntry struct {
	pharmacy  Pharmacy
	expiresAt time.Time
}

// Cache is a bounded, TTL-based phone → pharmacy map safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewCache creates a cache. maxEntries <= 0 means unbounded.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// WithClock overrides the time source.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	if now != nil {
		c.now = now
	}
	return c
}

// Get returns a copy of the cached pharmacy if present and unexpired.
func (c *Cache) Get(key string) (*Pharmacy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.After(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	p := entry.pharmacy
	return &p, true
}

// Set stores p under key for the cache TTL.
func (c *Cache) Set(key string, p Pharmacy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.entries, _ = evictExpired(c.entries, now)
		if len(c.entries) >= c.maxEntries {
			if victim, ok := soonestExpiry(c.entries); ok {
				delete(c.entries, victim)
			}
		}
	}
	c.entries[key] = cacheEntry{pharmacy: p, expiresAt: now.Add(c.ttl)}
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed int
	c.entries, removed = evictExpired(c.entries, c.now())
	return removed
}

// RunJanitor sweeps on every tick until ctx is cancelled.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration, logger *logging.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				logger.Info("cleared expired pharmacy cache entries", "removed", removed)
			}
		}
	}
}

// evictExpired returns the entries still live at now and the number dropped.
// An entry whose expiry equals now is expired. The input map is not modified.
func evictExpired(entries map[string]cacheEntry, now time.Time) (map[string]cacheEntry, int) {
	kept := make(map[string]cacheEntry, len(entries))
	removed := 0
	for key, entry := range entries {
		if entry.expiresAt.After(now) {
			kept[key] = entry
			continue
		}
		removed++
	}
	return kept, removed
}

// soonestExpiry picks the entry closest to expiring; ties break on key order.
func soonestExpiry(entries map[string]cacheEntry) (string, bool) {
	var (
		victim string
		best   time.Time
		found  bool
	)
	for key, entry := range entries {
		if !found || entry.expiresAt.Before(best) || (entry.expiresAt.Equal(best) && key < victim) {
			victim, best, found = key, entry.expiresAt, true
		}
	}
	return victim, found
}
