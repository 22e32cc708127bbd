package cowbytes

import (
	"context"
	"strings"

	etcdreg "cowbytes/registry/etcd"

	"github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
)

// WatchEtcd keeps picker's peer list in sync with the nodes registered for
// service, dialing new nodes over gRPC. It returns after the initial load;
// updates continue in the background until ctx is done.
func WatchEtcd(ctx context.Context, client *clientv3.Client, service string, picker *ClientPicker, dialOpts ...grpc.DialOption) error {
	if client == nil || picker == nil {
		return nil
	}
	prefix := etcdreg.ServicePrefix(service)

	update := func(kvs []*mvccpb.KeyValue) {
		picker.UpdatePeers(peerAddrs(prefix, kvs), func(addr string) (Peer, error) {
			return NewGRPCPeer(addr, dialOpts...)
		})
	}

	resp, err := client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return err
	}
	update(resp.Kvs)

	watchCh := client.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithRev(resp.Header.Revision+1))
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case wresp, ok := <-watchCh:
				if !ok {
					return
				}
				if err := wresp.Err(); err != nil {
					logrus.Warnf("etcd watch on %s: %v", prefix, err)
					continue
				}
				resp, err := client.Get(ctx, prefix, clientv3.WithPrefix())
				if err != nil {
					logrus.Warnf("etcd refresh of %s: %v", prefix, err)
					continue
				}
				update(resp.Kvs)
			}
		}
	}()
	return nil
}

func peerAddrs(prefix string, kvs []*mvccpb.KeyValue) []string {
	addrs := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		if addr := strings.TrimPrefix(string(kv.Key), prefix); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
