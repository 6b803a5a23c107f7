package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache backed by a map.
// Useful for tests and for the render server when persistence across
// restarts is not needed.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() Cache {
	return &MemoryCache{entries: make(map[Key][]byte)}
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	// Copy so callers cannot mutate the stored value.
	return append([]byte(nil), data...), true, nil
}

// Set stores a value in the cache.
func (c *MemoryCache) Set(ctx context.Context, key Key, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = append([]byte(nil), data...)
	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Close does nothing for the in-memory cache.
func (c *MemoryCache) Close() error {
	return nil
}

// Prune removes every diagram whose access stamp is older than the cutoff.
// Diagrams without a parseable stamp count as stale.
func (c *MemoryCache) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := make(map[string]bool)
	for key, data := range c.entries {
		if key.Namespace != NamespaceAccess {
			continue
		}
		if last, err := ParseAccessTime(data); err == nil && !last.Before(olderThan) {
			fresh[key.ID] = true
		}
	}

	pruned := make(map[string]bool)
	for key := range c.entries {
		if fresh[key.ID] {
			continue
		}
		pruned[key.ID] = true
		delete(c.entries, key)
	}
	return len(pruned), nil
}

// Wipe removes every entry.
func (c *MemoryCache) Wipe(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := len(c.entries)
	c.entries = make(map[Key][]byte)
	return removed, nil
}

// Ensure MemoryCache implements Cache and Janitor.
var (
	_ Cache   = (*MemoryCache)(nil)
	_ Janitor = (*MemoryCache)(nil)
)
