package memory

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	memorymodel "github.com/auralabs/aura/backend/internal/model/memory"
)

// DefaultTTL is how long a cached dossier stays valid.
const DefaultTTL = 10 * time.Minute

// Cache fronts the memory store with a per-process TTL cache. Entries expire
// lazily on read; concurrent writers race and the last write wins. Staleness
// within one TTL window is accepted.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[memorymodel.Key]cacheEntry
	sweeper *cron.Cron
}

type cacheEntry struct {
	record     memorymodel.Record
	insertedAt time.Time
}

// NewCache creates a cache with the given TTL. A non-positive ttl falls back
// to DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[memorymodel.Key]cacheEntry),
	}
}

// Get returns the cached dossier for the key. An entry at or past its TTL is
// treated as a miss and dropped.
func (c *Cache) Get(key memorymodel.Key) (memorymodel.Record, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return memorymodel.Record{}, false
	}
	if c.now().Sub(entry.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the entry.
		if current, still := c.entries[key]; still && current.insertedAt.Equal(entry.insertedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return memorymodel.Record{}, false
	}
	return entry.record, true
}

// Put replaces the whole entry for the key.
func (c *Cache) Put(key memorymodel.Key, rec memorymodel.Record) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{record: rec, insertedAt: c.now()}
	c.mu.Unlock()
}

// Sweep drops every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.insertedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartSweeper schedules a periodic Sweep until ctx is cancelled. Lazy expiry
// already guarantees correctness; the sweep only reclaims memory.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = c.ttl
	}

	job := cron.New()
	if _, err := job.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if n := c.Sweep(); n > 0 {
			log.Printf("[memory] swept %d expired cache entries", n)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	job.Start()

	c.mu.Lock()
	c.sweeper = job
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		job.Stop()
	}()
	return nil
}
