package knowledge

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultCacheTTL  = time.Hour
	DefaultCacheSize = 1000
)

type cacheEntry struct {
	key    string
	result Result
	stored time.Time
}

// resultCache is a TTL cache with a capacity bound. Stale entries are
// dropped when looked up; over capacity the oldest insert goes first.
type resultCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	gen      uint64
}

func newResultCache(ttl time.Duration, capacity int) *resultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &resultCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func cacheKey(intent, text string) string {
	return intent + "\x00" + text
}

func (c *resultCache) get(key string, now time.Time) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	e := el.Value.(*cacheEntry)
	if now.Sub(e.stored) >= c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return Result{}, false
	}
	return e.result, true
}

// generation changes on every clear; put ignores results computed against
// an older generation.
func (c *resultCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *resultCache) put(key string, r Result, now time.Time, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, result: r, stored: now})
	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.gen++
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
