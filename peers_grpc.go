package cowbytes

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// GRPCPeer is a Peer reached over the peer gRPC service.
type GRPCPeer struct {
	addr   string
	conn   *grpc.ClientConn
	client CacheClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

// NewGRPCPeer connects to addr. Without options the connection is insecure.
func NewGRPCPeer(addr string, opts ...grpc.DialOption) (*GRPCPeer, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCPeer{
		addr:   addr,
		conn:   conn,
		client: NewCacheClient(conn),
	}, nil
}

// Get fetches a value. The response message is decoded into a fresh buffer
// that nothing else references, so the result adopts it without copying.
func (p *GRPCPeer) Get(ctx context.Context, group string, key string) (CowBytes, error) {
	ctx, cancel := p.ctx(ctx)
	defer cancel()

	resp, err := p.client.Get(ctx, peerRequest{group: group, key: key}.marshal())
	if err != nil {
		return CowBytes{}, mapRPC(err)
	}
	return FromProto(resp), nil
}

func (p *GRPCPeer) Set(ctx context.Context, group string, key string, value CowBytes) error {
	ctx, cancel := p.ctx(ctx)
	defer cancel()

	_, err := p.client.Set(ctx, peerRequest{group: group, key: key, value: value}.marshal())
	return mapRPC(err)
}

func (p *GRPCPeer) Delete(ctx context.Context, group string, key string) (bool, error) {
	ctx, cancel := p.ctx(ctx)
	defer cancel()

	resp, err := p.client.Delete(ctx, peerRequest{group: group, key: key}.marshal())
	if err != nil {
		return false, mapRPC(err)
	}
	return resp.GetValue(), nil
}

func (p *GRPCPeer) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *GRPCPeer) String() string {
	return p.addr
}

// ctx applies Timeout and tells the remote node when the call is forwarded
// on behalf of a peer, so it is not forwarded again.
func (p *GRPCPeer) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if isPeerRequest(ctx) {
		ctx = metadata.AppendToOutgoingContext(ctx, peerMetadataKey, "1")
	}
	if p.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Timeout)
}
