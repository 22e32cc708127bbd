package cowbytes

import (
	"sync"
	"sync/atomic"
	"time"

	"cowbytes/store"

	"github.com/sirupsen/logrus"
)

// Cache is a threadsafe wrapper around a store of CowBytes values.
//
// Values are always stored Owned, so a caller's buffer is never retained.
// Get hands out Borrowed views over the stored allocation: stored bytes are
// never written to again, so a view stays valid after eviction.
type Cache struct {
	mu     sync.RWMutex
	store  store.Store
	opts   CacheOptions
	hits   int64
	misses int64
	closed int32
}

// CacheOptions
type CacheOptions struct {
	MaxBytes    int64
	CleanupTime time.Duration
	OnEvicted   func(key string, value CowBytes)
}

// DefaultCacheOptions mirrors store.NewOptions: 8 MiB, swept once a minute.
func DefaultCacheOptions() CacheOptions {
	defaults := store.NewOptions()
	return CacheOptions{
		MaxBytes:    defaults.MaxBytes,
		CleanupTime: defaults.CleanupInterval,
	}
}

// NewCache
func NewCache(opts CacheOptions) *Cache {
	return &Cache{opts: opts}
}

// ensureInitialized lazily creates the underlying store on first write.
func (c *Cache) ensureInitialized() {
	c.mu.RLock()
	ready := c.store != nil
	c.mu.RUnlock()
	if ready {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil || atomic.LoadInt32(&c.closed) == 1 {
		return
	}
	var onEvicted func(string, store.Value)
	if cb := c.opts.OnEvicted; cb != nil {
		onEvicted = func(key string, v store.Value) { cb(key, v.(CowBytes)) }
	}
	c.store = store.NewStore(store.Options{
		MaxBytes:        c.opts.MaxBytes,
		CleanupInterval: c.opts.CleanupTime,
		OnEvicted:       onEvicted,
	})
	logrus.Infof("cache initialized, max bytes %d", c.opts.MaxBytes)
}

// Add key-value; a Borrowed value is copied first
func (c *Cache) Add(key string, value CowBytes) {
	c.AddWithExpiration(key, value, 0)
}

// AddWithExpiration stores value for ttl; ttl <= 0 means no expiration.
func (c *Cache) AddWithExpiration(key string, value CowBytes, ttl time.Duration) {
	if atomic.LoadInt32(&c.closed) == 1 {
		logrus.Warnf("attempted to add to a closed cache: %s", key)
		return
	}
	c.ensureInitialized()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return
	}
	if err := c.store.SetWithExpiration(key, value.ToOwned(), ttl); err != nil {
		logrus.Warnf("failed to add key %s to cache: %v", key, err)
	}
}

// Get returns a Borrowed view of the cached bytes.
func (c *Cache) Get(key string) (CowBytes, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.store == nil {
		atomic.AddInt64(&c.misses, 1)
		return CowBytes{}, false
	}
	v, ok := c.store.Get(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return CowBytes{}, false
	}
	cb, ok := v.(CowBytes)
	if !ok {
		logrus.Warnf("cached value for key %s is %T, not CowBytes", key, v)
		atomic.AddInt64(&c.misses, 1)
		return CowBytes{}, false
	}
	atomic.AddInt64(&c.hits, 1)
	return Borrow(cb.Bytes()), true
}

// Delete key
func (c *Cache) Delete(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return false
	}
	return c.store.Delete(key)
}

// Clear
func (c *Cache) Clear() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return
	}
	c.store.Clear()
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Len
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return 0
	}
	return c.store.Len()
}

// Close releases the underlying store and freezes the cache.
func (c *Cache) Close() {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		c.store.Close()
		c.store = nil
	}
	logrus.Infof("cache closed, hits: %d, misses: %d", atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses))
}

// Stats exposes cache-level counters and size.
func (c *Cache) Stats() map[string]interface{} {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	stats := map[string]interface{}{
		"hits":   hits,
		"misses": misses,
		"closed": atomic.LoadInt32(&c.closed) == 1,
		"size":   c.Len(),
	}

	c.mu.RLock()
	if c.store != nil {
		stats["used_bytes"] = c.store.UsedBytes()
	}
	c.mu.RUnlock()

	if total := hits + misses; total > 0 {
		stats["hit_rate"] = float64(hits) / float64(total)
	} else {
		stats["hit_rate"] = 0.0
	}
	return stats
}
