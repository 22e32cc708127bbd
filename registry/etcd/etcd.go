// Package etcd implements registry.Registrar on etcd leases.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const basePath = "/cowbytes/services"

var errNilClient = errors.New("etcd registrar: client is nil")

// Registrar writes one key per node under the service prefix, bound to a
// lease that is kept alive until Deregister.
type Registrar struct {
	client *clientv3.Client
	ttl    time.Duration

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
}

// NewRegistrar uses ttl as the lease TTL, defaulting to 10s.
func NewRegistrar(client *clientv3.Client, ttl time.Duration) *Registrar {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Registrar{client: client, ttl: ttl, leases: make(map[string]clientv3.LeaseID)}
}

func (r *Registrar) Register(ctx context.Context, service string, addr string) error {
	if r.client == nil {
		return errNilClient
	}
	key := serviceKey(service, addr)
	lease, err := r.client.Grant(ctx, int64(r.ttl/time.Second))
	if err != nil {
		return fmt.Errorf("etcd registrar: grant lease: %w", err)
	}
	if _, err := r.client.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("etcd registrar: put %s: %w", key, err)
	}
	ka, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return fmt.Errorf("etcd registrar: keepalive: %w", err)
	}
	go func() {
		for range ka {
		}
		logrus.Infof("etcd lease for %s stopped", key)
	}()

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()
	logrus.Infof("registered %s in etcd with ttl %s", key, r.ttl)
	return nil
}

// Deregister deletes the node key and revokes its lease, which also ends the
// keepalive loop started by Register.
func (r *Registrar) Deregister(ctx context.Context, service string, addr string) error {
	if r.client == nil {
		return errNilClient
	}
	key := serviceKey(service, addr)
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("etcd registrar: delete %s: %w", key, err)
	}

	r.mu.Lock()
	id, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()
	if ok {
		if _, err := r.client.Revoke(ctx, id); err != nil {
			return fmt.Errorf("etcd registrar: revoke lease: %w", err)
		}
	}
	return nil
}

func serviceKey(service string, addr string) string {
	return path.Join(basePath, service, addr)
}

// ServicePrefix is the key prefix under which every node of service lives.
func ServicePrefix(service string) string {
	return path.Join(basePath, service) + "/"
}
