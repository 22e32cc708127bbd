package cowbytes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cowbytes/singleflight"

	"github.com/sirupsen/logrus"
)

var (
	groupsMu sync.RWMutex
	groups   = make(map[string]*Group)
)

var (
	ErrKeyRequired   = errors.New("cowbytes: key is required")
	ErrGroupClosed   = errors.New("cowbytes: group closed")
	ErrGroupNotFound = errors.New("cowbytes: group not found")
)

// Getter loads a value for a key when neither the local cache nor a peer has
// it. The returned slice is copied before it is cached.
type Getter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// GetterFunc implements Getter with a function.
type GetterFunc func(ctx context.Context, key string) ([]byte, error)

func (f GetterFunc) Get(ctx context.Context, key string) ([]byte, error) { return f(ctx, key) }

// Group is a cache namespace and the data loaded into it.
type Group struct {
	name       string
	getter     Getter
	mainCache  *Cache
	peers      PeerPicker
	loader     singleflight.Group[CowBytes]
	expiration time.Duration // 0 means entries never expire
	closed     int32
	stats      groupStats
}

type groupStats struct {
	loads        int64
	localHits    int64
	localMisses  int64
	peerHits     int64
	peerMisses   int64
	loaderHits   int64
	loaderErrors int64
	loadDuration int64 // nanoseconds
}

// GroupOption
type GroupOption func(*Group)

// WithExpiration sets the TTL of cached entries
func WithExpiration(d time.Duration) GroupOption {
	return func(g *Group) {
		g.expiration = d
	}
}

// WithPeers
func WithPeers(peers PeerPicker) GroupOption {
	return func(g *Group) {
		g.peers = peers
	}
}

// WithCacheOptions
func WithCacheOptions(opts CacheOptions) GroupOption {
	return func(g *Group) {
		g.mainCache = NewCache(opts)
	}
}

// NewGroup creates and registers a Group. It panics on a nil getter or a
// duplicate name.
func NewGroup(name string, cacheBytes int64, getter Getter, opts ...GroupOption) *Group {
	if getter == nil {
		panic("nil Getter")
	}
	cacheOpts := DefaultCacheOptions()
	cacheOpts.MaxBytes = cacheBytes
	g := &Group{
		name:      name,
		getter:    getter,
		mainCache: NewCache(cacheOpts),
	}
	for _, opt := range opts {
		opt(g)
	}

	groupsMu.Lock()
	defer groupsMu.Unlock()
	if _, dup := groups[name]; dup {
		panic("duplicate registration of group " + name)
	}
	groups[name] = g
	logrus.Infof("cache group %s created with cacheBytes=%d, expiration=%s", name, cacheBytes, g.expiration)
	return g
}

// GetGroup returns the named group, or nil.
func GetGroup(name string) *Group {
	groupsMu.RLock()
	defer groupsMu.RUnlock()
	return groups[name]
}

func (g *Group) Name() string {
	return g.name
}

// Get returns a Borrowed view of the value for key, loading it from a peer
// or the Getter on a miss.
func (g *Group) Get(ctx context.Context, key string) (CowBytes, error) {
	if atomic.LoadInt32(&g.closed) == 1 {
		return CowBytes{}, ErrGroupClosed
	}
	if key == "" {
		return CowBytes{}, ErrKeyRequired
	}

	if v, ok := g.mainCache.Get(key); ok {
		atomic.AddInt64(&g.stats.localHits, 1)
		return v, nil
	}
	atomic.AddInt64(&g.stats.localMisses, 1)
	return g.load(ctx, key)
}

// Set stores value under key and, unless the call came from a peer, pushes it
// to the peer that owns key.
func (g *Group) Set(ctx context.Context, key string, value CowBytes) error {
	if atomic.LoadInt32(&g.closed) == 1 {
		return ErrGroupClosed
	}
	if key == "" {
		return ErrKeyRequired
	}

	owned := value.ToOwned()
	g.populateCache(key, owned)

	if !isPeerRequest(ctx) && g.peers != nil {
		go g.syncToPeers(context.WithoutCancel(ctx), opSet, key, owned)
	}
	return nil
}

// Delete removes key locally and on its owner
func (g *Group) Delete(ctx context.Context, key string) error {
	if atomic.LoadInt32(&g.closed) == 1 {
		return ErrGroupClosed
	}
	if key == "" {
		return ErrKeyRequired
	}

	g.mainCache.Delete(key)

	if !isPeerRequest(ctx) && g.peers != nil {
		go g.syncToPeers(context.WithoutCancel(ctx), opDelete, key, CowBytes{})
	}
	return nil
}

type syncOp string

const (
	opSet    syncOp = "set"
	opDelete syncOp = "delete"
)

// syncToPeers
func (g *Group) syncToPeers(ctx context.Context, op syncOp, key string, value CowBytes) {
	peer, ok, self := g.peers.PickPeer(key)
	if !ok || self {
		return
	}

	ctx = withPeerRequest(ctx)
	var err error
	switch op {
	case opSet:
		err = peer.Set(ctx, g.name, key, value)
	case opDelete:
		_, err = peer.Delete(ctx, g.name, key)
	}
	if err != nil {
		logrus.Errorf("sync %s of %s/%s to peer failed: %v", op, g.name, key, err)
	}
}

// Clear
func (g *Group) Clear() {
	if atomic.LoadInt32(&g.closed) == 1 {
		return
	}
	g.mainCache.Clear()
	logrus.Infof("cache group %s cleared", g.name)
}

// Close closes the group's cache and unregisters it.
func (g *Group) Close() error {
	if !atomic.CompareAndSwapInt32(&g.closed, 0, 1) {
		return nil
	}
	g.mainCache.Close()

	groupsMu.Lock()
	if groups[g.name] == g {
		delete(groups, g.name)
	}
	groupsMu.Unlock()
	logrus.Infof("cache group %s closed", g.name)
	return nil
}

func (g *Group) load(ctx context.Context, key string) (CowBytes, error) {
	start := time.Now()
	v, err, _ := g.loader.Do(key, func() (CowBytes, error) {
		return g.loadData(ctx, key)
	})
	atomic.AddInt64(&g.stats.loadDuration, time.Since(start).Nanoseconds())
	atomic.AddInt64(&g.stats.loads, 1)

	if err != nil {
		atomic.AddInt64(&g.stats.loaderErrors, 1)
		return CowBytes{}, err
	}
	return Borrow(v.Bytes()), nil
}

// loadData fetches key from its owning peer, falling back to the Getter.
// Requests that already came from a peer are never forwarded again. The
// result is Owned and already cached.
func (g *Group) loadData(ctx context.Context, key string) (CowBytes, error) {
	if g.peers != nil && !isPeerRequest(ctx) {
		if peer, ok, self := g.peers.PickPeer(key); ok && !self {
			v, err := peer.Get(ctx, g.name, key)
			if err == nil {
				atomic.AddInt64(&g.stats.peerHits, 1)
				owned := v.ToOwned()
				g.populateCache(key, owned)
				return owned, nil
			}
			atomic.AddInt64(&g.stats.peerMisses, 1)
			logrus.Warnf("failed to get %s/%s from peer: %v", g.name, key, err)
		}
	}

	b, err := g.getter.Get(ctx, key)
	if err != nil {
		return CowBytes{}, fmt.Errorf("cowbytes: getter failed for %s/%s: %w", g.name, key, err)
	}
	atomic.AddInt64(&g.stats.loaderHits, 1)
	owned := Copy(b)
	g.populateCache(key, owned)
	return owned, nil
}

// populateCache
func (g *Group) populateCache(key string, value CowBytes) {
	g.mainCache.AddWithExpiration(key, value, g.expiration)
}

// RegisterPeers sets the PeerPicker. It panics if called twice.
func (g *Group) RegisterPeers(peers PeerPicker) {
	if g.peers != nil {
		panic("RegisterPeers called more than once")
	}
	g.peers = peers
	logrus.Infof("cache group %s registered peers", g.name)
}

// Stats returns group counters merged with the cache's, the latter prefixed
// with "cache_".
func (g *Group) Stats() map[string]interface{} {
	localHits := atomic.LoadInt64(&g.stats.localHits)
	localMisses := atomic.LoadInt64(&g.stats.localMisses)
	loaderHits := atomic.LoadInt64(&g.stats.loaderHits)
	loaderErrors := atomic.LoadInt64(&g.stats.loaderErrors)
	loads := atomic.LoadInt64(&g.stats.loads)

	stats := map[string]interface{}{
		"name":          g.name,
		"closed":        atomic.LoadInt32(&g.closed) == 1,
		"expiration":    g.expiration,
		"loads":         loads,
		"local_hits":    localHits,
		"local_misses":  localMisses,
		"peer_hits":     atomic.LoadInt64(&g.stats.peerHits),
		"peer_misses":   atomic.LoadInt64(&g.stats.peerMisses),
		"loader_hits":   loaderHits,
		"loader_errors": loaderErrors,
	}
	if total := localHits + localMisses; total > 0 {
		stats["local_hit_rate"] = float64(localHits) / float64(total)
	}
	if total := loaderHits + loaderErrors; total > 0 {
		stats["loader_hit_rate"] = float64(loaderHits) / float64(total)
	}
	if loads > 0 {
		stats["avg_load_time_ms"] = float64(atomic.LoadInt64(&g.stats.loadDuration)) / float64(loads) / float64(time.Millisecond)
	}
	for k, v := range g.mainCache.Stats() {
		stats["cache_"+k] = v
	}
	return stats
}

// ListGroups returns the names of all registered groups, sorted.
func ListGroups() []string {
	groupsMu.RLock()
	defer groupsMu.RUnlock()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DestroyGroup closes and unregisters the named group.
func DestroyGroup(name string) bool {
	g := GetGroup(name)
	if g == nil {
		return false
	}
	g.Close()
	logrus.Infof("cache group %s destroyed", name)
	return true
}

// DestroyAllGroups
func DestroyAllGroups() {
	for _, name := range ListGroups() {
		DestroyGroup(name)
	}
}

type peerRequestKey struct{}

func withPeerRequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, peerRequestKey{}, true)
}

// isPeerRequest reports whether ctx belongs to a request forwarded by a peer,
// which must not be forwarded again.
func isPeerRequest(ctx context.Context) bool {
	v, _ := ctx.Value(peerRequestKey{}).(bool)
	return v
}
