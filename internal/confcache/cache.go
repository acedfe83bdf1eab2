package confcache

import (
	"context"
	"sync"
	"time"
)

// Source fetches a configuration value from the remote key/value service.
type Source interface {
	Value(ctx context.Context, key string) (string, error)
}

// Cache is a process-wide key/value cache with a fixed TTL. Stale reads
// within the TTL window are an accepted trade-off; the administrative side
// invalidates keys explicitly after updates.
type Cache struct {
	Source Source
	TTL    time.Duration
	Now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	value   string
	expires time.Time
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Cache) ttl() time.Duration {
	if c.TTL <= 0 {
		return 5 * time.Minute
	}
	return c.TTL
}

// Get returns the cached value for key, fetching from the source when the
// entry is missing or expired. A fetch failure with no live entry surfaces
// the source error.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	value, err := c.Source.Value(ctx, key)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[string]entry)
	}
	c.entries[key] = entry{value: value, expires: c.now().Add(c.ttl())}
	c.mu.Unlock()
	return value, nil
}

// Peek returns the cached value without consulting the source. It reports
// whether a live entry existed.
func (c *Cache) Peek(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return "", false
	}
	return e.value, true
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll clears every cached entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}
