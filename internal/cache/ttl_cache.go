package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// Префиксы ключей кэша.
const (
	PrefixSkillSearch = "skills:search:"
	PrefixCategories  = "skills:categories"
)

// TTLCache - in-memory кэш с временем жизни записей.
// Чтение не продлевает жизнь записи.
type TTLCache struct {
	items *ttlcache.Cache[string, any]
	loads singleflight.Group
}

// NewTTLCache создаёт кэш. Очистка просроченных записей идёт в фоне до отмены ctx.
func NewTTLCache(ctx context.Context, ttl, cleanupEvery time.Duration) *TTLCache {
	c := &TTLCache{
		items: ttlcache.New[string, any](
			ttlcache.WithTTL[string, any](ttl),
			ttlcache.WithDisableTouchOnHit[string, any](),
		),
	}
	if cleanupEvery > 0 {
		go c.cleanup(ctx, cleanupEvery)
	}
	return c
}

// Get возвращает значение, если оно есть и не просрочено.
func (c *TTLCache) Get(key string) (any, bool) {
	item := c.items.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Set сохраняет значение на ttl кэша.
func (c *TTLCache) Set(key string, value any) {
	c.items.Set(key, value, ttlcache.DefaultTTL)
}

// SetWithTTL сохраняет значение с собственным временем жизни.
func (c *TTLCache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.items.Set(key, value, ttl)
}

// Delete удаляет ключ.
func (c *TTLCache) Delete(key string) {
	c.items.Delete(key)
}

// InvalidatePrefix удаляет все ключи с префиксом и возвращает их число.
func (c *TTLCache) InvalidatePrefix(prefix string) int {
	removed := 0
	for _, key := range c.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.items.Delete(key)
			removed++
		}
	}
	return removed
}

// Len возвращает число непросроченных записей.
func (c *TTLCache) Len() int {
	return c.items.Len()
}

// GetOrSet возвращает значение из кэша или вычисляет его через fn.
// Параллельные промахи по одному ключу вызывают fn один раз. Ошибки fn не кэшируются.
func (c *TTLCache) GetOrSet(key string, fn func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.loads.Do(key, func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	return v, err
}

func (c *TTLCache) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *TTLCache) evictExpired() {
	c.items.DeleteExpired()
}
