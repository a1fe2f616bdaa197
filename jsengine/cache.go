package jsengine

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache backs java.put and java.get. One cache is meant to live for one
// book's fetch sequence: search, detail, table of contents and chapters.
type Cache interface {
	Put(key, value string)
	Get(key string) (string, bool)
	Clear()
}

type MemoryCache struct {
	c *cache.Cache
}

// NewMemoryCache creates a cache whose entries expire after ttl; zero keeps
// entries until Clear.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	exp, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		exp, cleanup = ttl, 2*ttl
	}
	return &MemoryCache{c: cache.New(exp, cleanup)}
}

func (m *MemoryCache) Put(key, value string) {
	m.c.Set(key, value, cache.DefaultExpiration)
}

func (m *MemoryCache) Get(key string) (string, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m *MemoryCache) Clear() {
	m.c.Flush()
}

type cacheKey struct{}

// ContextWithCache scopes a cache to every script call made with ctx.
func ContextWithCache(ctx context.Context, c Cache) context.Context {
	return context.WithValue(ctx, cacheKey{}, c)
}

// CacheFromContext returns the cache attached by ContextWithCache.
func CacheFromContext(ctx context.Context) (Cache, bool) {
	c, ok := ctx.Value(cacheKey{}).(Cache)
	return c, ok
}
