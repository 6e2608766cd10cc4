package geo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/vadimbarashkov/shortlink/internal/entity"

	gocache "github.com/patrickmn/go-cache"
)

// Cache stores resolved locations by IP address.
type Cache interface {
	Get(ip string) (entity.Location, bool)
	Set(ip string, loc entity.Location)
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	c   *gocache.Cache
	ttl time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		c:   gocache.New(ttl, 2*ttl),
		ttl: ttl,
	}
}

func (m *MemoryCache) Get(ip string) (entity.Location, bool) {
	v, ok := m.c.Get(ip)
	if !ok {
		return entity.Location{}, false
	}
	loc, ok := v.(entity.Location)
	return loc, ok
}

func (m *MemoryCache) Set(ip string, loc entity.Location) {
	m.c.Set(ip, loc, m.ttl)
}

// Memcache shares resolved locations between instances through memcached.
// Memcached errors count as misses.
type Memcache struct {
	client *memcache.Client
	ttl    int32
}

func NewMemcache(client *memcache.Client, ttl time.Duration) *Memcache {
	return &Memcache{
		client: client,
		ttl:    int32(ttl / time.Second),
	}
}

func memcacheKey(ip string) string {
	return "geo:" + ip
}

func (m *Memcache) Get(ip string) (entity.Location, bool) {
	item, err := m.client.Get(memcacheKey(ip))
	if err != nil {
		return entity.Location{}, false
	}

	var loc entity.Location
	if err := json.Unmarshal(item.Value, &loc); err != nil {
		return entity.Location{}, false
	}

	return loc, true
}

func (m *Memcache) Set(ip string, loc entity.Location) {
	value, err := json.Marshal(loc)
	if err != nil {
		return
	}

	_ = m.client.Set(&memcache.Item{
		Key:        memcacheKey(ip),
		Value:      value,
		Expiration: m.ttl,
	})
}

// CachedLocator remembers successful lookups of the wrapped locator.
// Failures are not cached.
type CachedLocator struct {
	next  Locator
	cache Cache
}

func NewCachedLocator(next Locator, cache Cache) *CachedLocator {
	return &CachedLocator{next: next, cache: cache}
}

func (l *CachedLocator) Locate(ctx context.Context, ip string) (entity.Location, error) {
	if loc, ok := l.cache.Get(ip); ok {
		return loc, nil
	}

	loc, err := l.next.Locate(ctx, ip)
	if err != nil {
		return entity.Location{}, err
	}

	l.cache.Set(ip, loc)

	return loc, nil
}
