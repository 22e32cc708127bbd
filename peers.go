package cowbytes

import (
	"context"
	"reflect"
	"sync"

	"cowbytes/consistenthash"

	"github.com/sirupsen/logrus"
)

const defaultSvcName = "cowbytes"

// PeerPicker locates the peer that owns a key.
type PeerPicker interface {
	// PickPeer returns the owning peer; self is true when that is this node,
	// in which case peer is nil.
	PickPeer(key string) (peer Peer, ok bool, self bool)
	Close() error
}

// Peer is a remote node holding part of a group's keyspace. Values returned
// by Get are Owned.
type Peer interface {
	Get(ctx context.Context, group string, key string) (CowBytes, error)
	Set(ctx context.Context, group string, key string, value CowBytes) error
	Delete(ctx context.Context, group string, key string) (bool, error)
	Close() error
}

// ClientPicker maintains a consistent-hash ring and peer clients.
type ClientPicker struct {
	self  string
	mu    sync.RWMutex
	hash  *consistenthash.Map
	peers map[string]Peer
}

// NewClientPicker
func NewClientPicker(self string) *ClientPicker {
	return &ClientPicker{
		self:  self,
		hash:  consistenthash.New(),
		peers: make(map[string]Peer),
	}
}

// SetPeers replaces peers and rebuilds the hash ring. The node named self may
// map to nil.
func (p *ClientPicker) SetPeers(peers map[string]Peer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr, old := range p.peers {
		if next, ok := peers[addr]; (!ok || !samePeer(next, old)) && old != nil {
			_ = old.Close()
		}
	}
	p.peers = make(map[string]Peer, len(peers))
	nodes := make([]string, 0, len(peers))
	for node, peer := range peers {
		if node == "" || (peer == nil && node != p.self) {
			continue
		}
		p.peers[node] = peer
		nodes = append(nodes, node)
	}
	p.rebuildLocked(nodes)
}

// UpdatePeers replaces peers by address, reusing clients that already exist
// and dialing the rest with newPeer. Clients for addresses that went away are
// closed.
func (p *ClientPicker) UpdatePeers(addrs []string, newPeer func(addr string) (Peer, error)) {
	if newPeer == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]Peer, len(addrs))
	nodes := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		if addr == p.self {
			next[addr] = nil
			nodes = append(nodes, addr)
			continue
		}
		if existing, ok := p.peers[addr]; ok && existing != nil {
			next[addr] = existing
			nodes = append(nodes, addr)
			continue
		}
		peer, err := newPeer(addr)
		if err != nil || peer == nil {
			logrus.Warnf("failed to create peer %s: %v", addr, err)
			continue
		}
		next[addr] = peer
		nodes = append(nodes, addr)
	}

	for addr, peer := range p.peers {
		if _, ok := next[addr]; !ok && peer != nil {
			_ = peer.Close()
		}
	}
	p.peers = next
	p.rebuildLocked(nodes)
	logrus.Infof("peer set updated: %v", nodes)
}

// samePeer reports whether a and b are the same client. Values of
// non-comparable types are never the same.
func samePeer(a, b Peer) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

func (p *ClientPicker) rebuildLocked(nodes []string) {
	p.hash = consistenthash.New()
	if len(nodes) > 0 {
		_ = p.hash.Add(nodes...)
	}
}

// PickPeer returns the peer responsible for key, plus whether it's self.
func (p *ClientPicker) PickPeer(key string) (peer Peer, ok bool, self bool) {
	if key == "" {
		return nil, false, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.hash == nil || len(p.peers) == 0 {
		return nil, false, false
	}
	node := p.hash.Get(key)
	if node == "" {
		return nil, false, false
	}
	if node == p.self {
		return nil, true, true
	}
	peer, ok = p.peers[node]
	return peer, ok && peer != nil, false
}

func (p *ClientPicker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, peer := range p.peers {
		if peer != nil {
			_ = peer.Close()
		}
	}
	p.peers = nil
	p.hash = nil
	return nil
}

// LocalPeer serves requests from the groups registered in this process. It
// stands in for a remote node in single-process setups and tests.
type LocalPeer struct{}

func (LocalPeer) Get(ctx context.Context, group string, key string) (CowBytes, error) {
	g := GetGroup(group)
	if g == nil {
		return CowBytes{}, ErrGroupNotFound
	}
	v, err := g.Get(withPeerRequest(ctx), key)
	if err != nil {
		return CowBytes{}, err
	}
	return v.ToOwned(), nil
}

func (LocalPeer) Set(ctx context.Context, group string, key string, value CowBytes) error {
	g := GetGroup(group)
	if g == nil {
		return ErrGroupNotFound
	}
	return g.Set(withPeerRequest(ctx), key, value)
}

func (LocalPeer) Delete(ctx context.Context, group string, key string) (bool, error) {
	g := GetGroup(group)
	if g == nil {
		return false, ErrGroupNotFound
	}
	return true, g.Delete(withPeerRequest(ctx), key)
}

func (LocalPeer) Close() error { return nil }
