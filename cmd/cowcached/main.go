// Command cowcached runs a cache node or issues a single request against one.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cowbytes"
	"cowbytes/registry"
	etcdreg "cowbytes/registry/etcd"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	mode := flag.String("mode", "server", "server or client")
	addr := flag.String("addr", "127.0.0.1:9000", "grpc listen address (server) or target (client)")
	peers := flag.String("peers", "", "static peer addresses, comma separated; overrides etcd discovery")
	etcdEndpoints := flag.String("etcd", "127.0.0.1:2379", "etcd endpoints, comma separated; empty disables etcd")
	service := flag.String("service", "cowbytes", "service name for discovery")
	group := flag.String("group", "scores", "cache group name")
	cacheBytes := flag.Int64("cache-bytes", 1<<20, "cache capacity in bytes")
	op := flag.String("op", "get", "client op: get|set|delete")
	key := flag.String("key", "k1", "cache key")
	value := flag.String("value", "v1", "cache value")
	format := flag.String("format", "text", "client output: text|hex|json|msgpack|cbor")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	var err error
	switch *mode {
	case "server":
		err = runServer(*addr, *peers, *etcdEndpoints, *service, *group, *cacheBytes)
	case "client":
		err = runClient(*addr, *group, *op, *key, *value, *format)
	default:
		err = fmt.Errorf("invalid mode %q: use server or client", *mode)
	}
	if err != nil {
		logrus.Errorf("%s error: %v", *mode, err)
		os.Exit(1)
	}
}

func runServer(addr, peers, endpoints, service, groupName string, cacheBytes int64) error {
	ctx, stop := signalContext()
	defer stop()

	g := cowbytes.NewGroup(groupName, cacheBytes, cowbytes.GetterFunc(func(ctx context.Context, key string) ([]byte, error) {
		return []byte("value-" + key), nil
	}))
	defer g.Close()

	picker := cowbytes.NewClientPicker(addr)
	defer picker.Close()

	var reg registry.Registrar = registry.NopRegistrar{}
	switch {
	case peers != "":
		picker.UpdatePeers(append(splitList(peers), addr), func(a string) (cowbytes.Peer, error) {
			return cowbytes.NewGRPCPeer(a)
		})
	case endpoints != "":
		cli, err := newEtcdClient(endpoints)
		if err != nil {
			return err
		}
		defer cli.Close()
		if err := cowbytes.WatchEtcd(ctx, cli, service, picker, grpc.WithTransportCredentials(insecure.NewCredentials())); err != nil {
			return fmt.Errorf("watch etcd: %w", err)
		}
		reg = etcdreg.NewRegistrar(cli, 10*time.Second)
	}
	g.RegisterPeers(picker)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return cowbytes.ServeGRPC(ctx, lis, cowbytes.GRPCServerOptions{
		ServiceName: service,
		Registrar:   reg,
	})
}

func runClient(target, group, op, key, value, format string) error {
	peer, err := cowbytes.NewGRPCPeer(target)
	if err != nil {
		return err
	}
	defer peer.Close()
	peer.Timeout = 3 * time.Second
	ctx := context.Background()

	switch op {
	case "get":
		v, err := peer.Get(ctx, group, key)
		if err != nil {
			return err
		}
		out, err := render(v, format)
		if err != nil {
			return err
		}
		fmt.Printf("get %s => %s\n", key, out)
	case "set":
		if err := peer.Set(ctx, group, key, cowbytes.Copy([]byte(value))); err != nil {
			return err
		}
		fmt.Printf("set %s = %s\n", key, value)
	case "delete":
		ok, err := peer.Delete(ctx, group, key)
		if err != nil {
			return err
		}
		fmt.Printf("delete %s => %v\n", key, ok)
	default:
		return fmt.Errorf("invalid op: %s", op)
	}
	return nil
}

// render prints v as text or as its encoding in one of the supported formats.
func render(v cowbytes.CowBytes, format string) (string, error) {
	var (
		b   []byte
		err error
	)
	switch format {
	case "text":
		return v.String(), nil
	case "hex":
		return hex.EncodeToString(v.Bytes()), nil
	case "json":
		b, err = json.Marshal(v)
		return string(b), err
	case "msgpack":
		b, err = msgpack.Marshal(v)
	case "cbor":
		b, err = cbor.Marshal(v)
	default:
		return "", fmt.Errorf("invalid format: %s", format)
	}
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newEtcdClient(endpoints string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   splitList(endpoints),
		DialTimeout: 3 * time.Second,
	})
}

// signalContext cancels on SIGINT/SIGTERM for graceful shutdown.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}
