// README: Read-through TTL cache over the settings store; safe for concurrent readers.
package settings

import (
	"context"
	"sync"
	"time"
)

type cachedValue struct {
	value    string
	err      error
	loadedAt time.Time
}

// Cache decorates a Provider with per-key caching. Values are re-read after
// the TTL elapses; until then every reader sees the same loaded value. A
// load failure is cached too so an unreachable store does not get hammered
// on every tick.
type Cache struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu     sync.RWMutex
	values map[string]cachedValue
}

func NewCache(inner Provider, ttl time.Duration) *Cache {
	return &Cache{
		inner:  inner,
		ttl:    ttl,
		now:    time.Now,
		values: make(map[string]cachedValue),
	}
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	cv, ok := c.values[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(cv.loadedAt) < c.ttl {
		return cv.value, cv.err
	}

	v, err := c.inner.Get(ctx, key)
	c.mu.Lock()
	c.values[key] = cachedValue{value: v, err: err, loadedAt: c.now()}
	c.mu.Unlock()
	return v, err
}
