package cache

import (
	"sync/atomic"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

// Memory is an in-process TTL cache of prices. It sits in front of the file
// cache for values read many times within one run.
type Memory struct {
	cache  *goCache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// MemoryStats reports the entry count and hit/miss counts since creation.
type MemoryStats struct {
	Size   int
	Hits   int
	Misses int
}

// NewMemory builds a cache whose entries live for ttl. A zero ttl never
// expires.
func NewMemory(ttl time.Duration) *Memory {
	expiration, cleanup := ttl, ttl
	if ttl <= 0 {
		expiration, cleanup = goCache.NoExpiration, 0
	}
	return &Memory{cache: goCache.New(expiration, cleanup)}
}

func (m *Memory) Get(key string) (float64, bool) {
	v, ok := m.cache.Get(key)
	if !ok {
		m.misses.Add(1)
		return 0, false
	}
	m.hits.Add(1)
	return v.(float64), true
}

func (m *Memory) Set(key string, value float64) {
	m.cache.SetDefault(key, value)
}

func (m *Memory) Stats() MemoryStats {
	return MemoryStats{
		Size:   m.cache.ItemCount(),
		Hits:   int(m.hits.Load()),
		Misses: int(m.misses.Load()),
	}
}
