package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is an in-process cache with TTL and size-based eviction.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
}

var _ Cache[int] = (*LRUCache[int])(nil)

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get retrieves a value from the cache
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if c.now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

// Set stores a value in the cache
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(item)

	for c.maxSize > 0 && c.lru.Len() > c.maxSize {
		c.removeElement(c.lru.Back())
	}
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}