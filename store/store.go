// Package store holds the byte-bounded backends a Cache keeps its values in.
package store

import "time"

// Value reports its memory footprint for eviction accounting.
type Value interface {
	Len() int
}

// Store is the cache backend interface used by Cache.
type Store interface {
	Get(key string) (Value, bool)

	Set(key string, value Value) error

	// SetWithExpiration stores value for at most ttl; ttl <= 0 means forever.
	SetWithExpiration(key string, value Value, ttl time.Duration) error

	Delete(key string) bool

	Clear()

	Len() int

	// UsedBytes is the sum of key and value lengths currently held.
	UsedBytes() int64

	Close()
}

// Options configures a Store.
type Options struct {
	MaxBytes        int64 // 0 disables size-based eviction
	CleanupInterval time.Duration
	OnEvicted       func(key string, value Value)
}

// NewOptions returns the default store settings.
func NewOptions() Options {
	return Options{
		MaxBytes:        8 << 20,
		CleanupInterval: time.Minute,
	}
}

// NewStore builds the LRU store.
func NewStore(options Options) Store {
	return newLRUCache(options)
}
