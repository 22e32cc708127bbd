// Package consistenthash maps keys onto a ring of nodes.
package consistenthash

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Map is a consistent-hash ring with virtual replicas.
type Map struct {
	mu      sync.RWMutex
	config  Config
	keys    []uint32
	hashMap map[uint32]string
	nodes   map[string]struct{}
}

type Option func(*Map)

// WithConfig overrides DefaultConfig. Zero fields keep their defaults.
func WithConfig(config Config) Option {
	return func(m *Map) {
		if config.Replicas > 0 {
			m.config.Replicas = config.Replicas
		}
		if config.HashFunc != nil {
			m.config.HashFunc = config.HashFunc
		}
	}
}

func New(opts ...Option) *Map {
	m := &Map{
		config:  DefaultConfig,
		hashMap: make(map[uint32]string),
		nodes:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add inserts nodes with their virtual replicas. Empty names are skipped and
// nodes already on the ring are left alone.
func (m *Map) Add(nodes ...string) error {
	if len(nodes) == 0 {
		return errors.New("consistenthash: no nodes to add")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, node := range nodes {
		if node == "" {
			continue
		}
		if _, ok := m.nodes[node]; ok {
			continue
		}
		for i := 0; i < m.config.Replicas; i++ {
			h := m.hash(node, i)
			m.hashMap[h] = node
			m.keys = append(m.keys, h)
		}
		m.nodes[node] = struct{}{}
	}
	sort.Slice(m.keys, func(i, j int) bool { return m.keys[i] < m.keys[j] })
	return nil
}

func (m *Map) Remove(node string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[node]; !ok {
		return fmt.Errorf("consistenthash: node %q not found", node)
	}
	for i := 0; i < m.config.Replicas; i++ {
		delete(m.hashMap, m.hash(node, i))
	}
	keys := m.keys[:0]
	for _, h := range m.keys {
		if _, ok := m.hashMap[h]; ok {
			keys = append(keys, h)
		}
	}
	m.keys = keys
	delete(m.nodes, node)
	return nil
}

// Get returns the node responsible for key, or "" when the ring is empty.
func (m *Map) Get(key string) string {
	if key == "" {
		return ""
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.keys) == 0 {
		return ""
	}
	h := m.config.HashFunc([]byte(key))
	idx := sort.Search(len(m.keys), func(i int) bool { return m.keys[i] >= h })
	if idx == len(m.keys) {
		idx = 0
	}
	return m.hashMap[m.keys[idx]]
}

// Nodes returns the nodes on the ring in sorted order.
func (m *Map) Nodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodes := make([]string, 0, len(m.nodes))
	for n := range m.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

func (m *Map) hash(node string, replica int) uint32 {
	return m.config.HashFunc([]byte(node + "-" + strconv.Itoa(replica)))
}
