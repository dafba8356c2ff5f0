package inmemory

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/cache"
)

type item struct {
	value interface{}

	// expiresAt is zero for entries without a TTL.
	expiresAt time.Time
}

type Cache struct {
	mu     sync.RWMutex
	items  map[string]item
	now    func() time.Time
	logger *zap.Logger
}

func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		items:  make(map[string]item),
		now:    time.Now,
		logger: logger,
	}
}

func (c *Cache) Set(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item{value: value}
	c.logger.Debug("Entry added to cache", zap.String("key", key))
	return nil
}

func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Set(key, value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item{value: value, expiresAt: c.now().Add(ttl)}
	c.logger.Debug("Entry added to cache", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (c *Cache) Get(key string) (interface{}, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		c.logger.Debug("Entry not found in cache", zap.String("key", key))
		return nil, cache.ErrMiss
	}
	if !it.expiresAt.IsZero() && !c.now().Before(it.expiresAt) {
		c.mu.Lock()
		// Another writer may have refreshed the entry meanwhile.
		if cur, ok := c.items[key]; ok && cur.expiresAt.Equal(it.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		c.logger.Debug("Entry expired in cache", zap.String("key", key))
		return nil, cache.ErrMiss
	}

	return it.value, nil
}

func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}
