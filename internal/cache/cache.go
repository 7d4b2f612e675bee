package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a fixed-capacity map with insertion-order (FIFO) eviction and an
// optional TTL. When full, Put evicts the entry that was inserted earliest.
// Expiry is lazy: expired entries are dropped when read, not swept.
//
// A zero TTL disables expiry. Safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[K]*list.Element
	order    *list.List

	now func() time.Time
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	insertedAt time.Time
}

func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[K]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

// Put inserts or overwrites key. Overwriting refreshes the insertion
// timestamp, so the entry moves to the back of the eviction order.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry[K, V])
		ent.value = value
		ent.insertedAt = c.now()
		c.order.MoveToBack(el)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[K, V]).key)
		}
	}
	c.entries[key] = c.order.PushBack(&entry[K, V]{key: key, value: value, insertedAt: c.now()})
}

// Get returns the value for key, or false if absent or TTL-expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	ent := el.Value.(*entry[K, V])
	if c.expired(ent) {
		c.order.Remove(el)
		delete(c.entries, key)
		return zero, false
	}
	return ent.value, true
}

func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache[K, V]) expired(ent *entry[K, V]) bool {
	return c.ttl > 0 && c.now().Sub(ent.insertedAt) > c.ttl
}
