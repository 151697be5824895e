package similarity

import (
	"container/list"
	"sync"
)

// cacheKeyLen bounds the cache key to the first N characters of the
// source text so lookups stay cheap for long insight statements.
const cacheKeyLen = 200

// embeddingCache is a capacity-bounded LRU over computed embeddings.
// It is shared process-wide across brands, so access is mutex-guarded.
type embeddingCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key string
	vec []float32
}

func newEmbeddingCache(capacity int) *embeddingCache {
	if capacity <= 0 {
		capacity = 2048
	}
	return &embeddingCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// cacheKey truncates text to the bounded key length.
func cacheKey(text string) string {
	if len(text) <= cacheKeyLen {
		return text
	}
	return text[:cacheKeyLen]
}

func (c *embeddingCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).vec, true
}

func (c *embeddingCache) put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).vec = vec
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, vec: vec})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// len reports the current entry count (used by tests).
func (c *embeddingCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
