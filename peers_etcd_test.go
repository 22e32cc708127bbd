package cowbytes

import (
	"context"
	"testing"

	etcdreg "cowbytes/registry/etcd"

	"go.etcd.io/etcd/api/v3/mvccpb"
)

func TestPeerAddrs(t *testing.T) {
	prefix := etcdreg.ServicePrefix("cache")
	kvs := []*mvccpb.KeyValue{
		{Key: []byte(prefix + "10.0.0.1:9000")},
		{Key: []byte(prefix + "10.0.0.2:9000")},
		{Key: []byte(prefix)},
	}
	addrs := peerAddrs(prefix, kvs)
	if len(addrs) != 2 || addrs[0] != "10.0.0.1:9000" || addrs[1] != "10.0.0.2:9000" {
		t.Fatalf("peerAddrs = %v", addrs)
	}
}

func TestPeerAddrsFeedPicker(t *testing.T) {
	prefix := etcdreg.ServicePrefix("cache")
	kvs := []*mvccpb.KeyValue{
		{Key: []byte(prefix + "self:1")},
		{Key: []byte(prefix + "other:1")},
	}
	picker := NewClientPicker("self:1")
	defer picker.Close()

	var dialed []string
	picker.UpdatePeers(peerAddrs(prefix, kvs), func(addr string) (Peer, error) {
		dialed = append(dialed, addr)
		return &fakePeer{}, nil
	})
	if len(dialed) != 1 || dialed[0] != "other:1" {
		t.Fatalf("dialed %v, want only the remote node", dialed)
	}
}

func TestWatchEtcdNilArgs(t *testing.T) {
	if err := WatchEtcd(context.Background(), nil, "cache", NewClientPicker("a")); err != nil {
		t.Fatalf("WatchEtcd with nil client = %v", err)
	}
}
