package weather

import (
	"encoding/json"
	"sync"
	"time"
)

// Cache is an in-process, time-boxed key to JSON value store. Entries are
// lazily invalidated: a read past the TTL returns a miss but the stale entry
// stays in the map until a fresh write overwrites the key. There is no
// background sweep and no capacity bound; key cardinality is a small set of
// (operation, location[, days]) tuples, so unbounded growth is an accepted
// limitation rather than a bug.
type Cache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value    json.RawMessage
	storedAt time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string]cacheEntry)}
}

// Get returns the stored value iff the entry is younger than ttl. Stale
// entries are not deleted.
func (c *Cache) Get(key string, ttl time.Duration) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) >= ttl {
		return nil, false
	}
	return entry.value, true
}

// Set overwrites the key unconditionally with a fresh timestamp.
func (c *Cache) Set(key string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{value: value, storedAt: time.Now()}
}

// Len returns the number of entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
