package consistenthash

import "github.com/spaolacci/murmur3"

// Config controls how many virtual nodes each node gets and how keys hash.
type Config struct {
	Replicas int
	HashFunc func(data []byte) uint32
}

// DefaultConfig provides baseline ring settings.
var DefaultConfig = Config{
	Replicas: 50,
	HashFunc: murmur3.Sum32,
}
