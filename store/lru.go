package store

import (
	"container/list"
	"sync"
	"time"
)

// lruCache evicts the least recently used entry once usedBytes exceeds
// maxBytes, and drops entries whose TTL has passed.
type lruCache struct {
	mu        sync.Mutex
	ll        *list.List
	items     map[string]*list.Element
	maxBytes  int64
	usedBytes int64
	onEvicted func(key string, value Value)

	ticker    *time.Ticker
	closeCh   chan struct{}
	closeOnce sync.Once
}

type lruEntry struct {
	key      string
	value    Value
	expireAt time.Time // zero means no expiration
}

func (e *lruEntry) size() int64 {
	return int64(len(e.key) + e.value.Len())
}

func (e *lruEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// newLRUCache builds an LRU cache with periodic expiration cleanup.
func newLRUCache(options Options) *lruCache {
	interval := options.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	c := &lruCache{
		ll:        list.New(),
		items:     make(map[string]*list.Element),
		maxBytes:  options.MaxBytes,
		onEvicted: options.OnEvicted,
		ticker:    time.NewTicker(interval),
		closeCh:   make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get returns the value and marks it most recently used. Expired entries are
// removed on the way.
func (c *lruCache) Get(key string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*lruEntry)
	if entry.expired(time.Now()) {
		c.removeElement(elem)
		return nil, false
	}
	c.ll.MoveToBack(elem)
	return entry.value, true
}

func (c *lruCache) Set(key string, value Value) error {
	return c.SetWithExpiration(key, value, 0)
}

func (c *lruCache) SetWithExpiration(key string, value Value, ttl time.Duration) error {
	if value == nil {
		c.Delete(key)
		return nil
	}
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry)
		c.usedBytes -= entry.size()
		entry.value = value
		entry.expireAt = expireAt
		c.usedBytes += entry.size()
		c.ll.MoveToBack(elem)
	} else {
		entry := &lruEntry{key: key, value: value, expireAt: expireAt}
		c.items[key] = c.ll.PushBack(entry)
		c.usedBytes += entry.size()
	}
	c.evictOverflow()
	return nil
}

func (c *lruCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return true
	}
	return false
}

// Clear drops every entry, reporting each to onEvicted.
func (c *lruCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvicted != nil {
		for e := c.ll.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*lruEntry)
			c.onEvicted(entry.key, entry.value)
		}
	}
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.usedBytes = 0
}

func (c *lruCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *lruCache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *lruCache) Close() {
	c.closeOnce.Do(func() {
		c.ticker.Stop()
		close(c.closeCh)
	})
}

func (c *lruCache) cleanupLoop() {
	for {
		select {
		case <-c.ticker.C:
			c.mu.Lock()
			c.evictExpired(time.Now())
			c.evictOverflow()
			c.mu.Unlock()
		case <-c.closeCh:
			return
		}
	}
}

// evictExpired walks the whole list, so only the cleanup loop runs it.
// Callers hold c.mu.
func (c *lruCache) evictExpired(now time.Time) {
	for e := c.ll.Front(); e != nil; {
		next := e.Next()
		if e.Value.(*lruEntry).expired(now) {
			c.removeElement(e)
		}
		e = next
	}
}

// evictOverflow drops the oldest entries until the cache fits in maxBytes.
// Callers hold c.mu.
func (c *lruCache) evictOverflow() {
	if c.maxBytes <= 0 {
		return
	}
	for c.usedBytes > c.maxBytes {
		front := c.ll.Front()
		if front == nil {
			return
		}
		c.removeElement(front)
	}
}

func (c *lruCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*lruEntry)
	c.ll.Remove(elem)
	delete(c.items, entry.key)
	c.usedBytes -= entry.size()
	if c.onEvicted != nil {
		c.onEvicted(entry.key, entry.value)
	}
}
