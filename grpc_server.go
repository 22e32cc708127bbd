package cowbytes

import (
	"context"
	"errors"
	"net"

	"cowbytes/registry"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// peerMetadataKey is set on RPCs that one node forwards to another. Calls
// without it come from clients and may be forwarded to the key's owner.
const peerMetadataKey = "cowbytes-peer"

// GRPCServer serves the groups registered in this process to clients and
// peers.
type GRPCServer struct {
	UnimplementedCacheServer
}

// fromPeer marks ctx as a peer request when the caller declared itself a
// peer in the request metadata.
func fromPeer(ctx context.Context) context.Context {
	if md, ok := metadata.FromIncomingContext(ctx); ok && len(md.Get(peerMetadataKey)) > 0 {
		return withPeerRequest(ctx)
	}
	return ctx
}

func (s *GRPCServer) Get(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	req, g, err := s.resolve(in)
	if err != nil {
		return nil, err
	}
	v, err := g.Get(fromPeer(ctx), req.key)
	if err != nil {
		return nil, mapErr(err)
	}
	return v.Proto(), nil
}

func (s *GRPCServer) Set(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	req, g, err := s.resolve(in)
	if err != nil {
		return nil, err
	}
	if err := g.Set(fromPeer(ctx), req.key, req.value); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Delete(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	req, g, err := s.resolve(in)
	if err != nil {
		return nil, err
	}
	if err := g.Delete(fromPeer(ctx), req.key); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(true), nil
}

// resolve decodes and validates a request and looks up its group.
func (s *GRPCServer) resolve(in *wrapperspb.BytesValue) (peerRequest, *Group, error) {
	req, err := parsePeerRequest(in)
	if err != nil {
		return peerRequest{}, nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.group == "" {
		return peerRequest{}, nil, status.Error(codes.InvalidArgument, "group is required")
	}
	if req.key == "" {
		return peerRequest{}, nil, status.Error(codes.InvalidArgument, ErrKeyRequired.Error())
	}
	g := GetGroup(req.group)
	if g == nil {
		return peerRequest{}, nil, status.Error(codes.NotFound, ErrGroupNotFound.Error())
	}
	return req, g, nil
}

// GRPCServerOptions
type GRPCServerOptions struct {
	ServiceName string
	Registrar   registry.Registrar
	ServerOpts  []grpc.ServerOption
}

// ServeGRPC serves the peer service on lis until ctx is done, registering the
// listener address with opts.Registrar for the lifetime of the server.
func ServeGRPC(ctx context.Context, lis net.Listener, opts GRPCServerOptions) error {
	server := grpc.NewServer(opts.ServerOpts...)
	RegisterCacheServer(server, &GRPCServer{})

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = defaultSvcName
	}
	addr := lis.Addr().String()
	if opts.Registrar != nil {
		if err := opts.Registrar.Register(ctx, serviceName, addr); err != nil {
			return err
		}
		defer func() {
			if err := opts.Registrar.Deregister(context.Background(), serviceName, addr); err != nil {
				logrus.Warnf("deregister %s from %s failed: %v", addr, serviceName, err)
			}
		}()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			server.GracefulStop()
		case <-done:
		}
	}()
	logrus.Infof("grpc server for %s listening on %s", serviceName, addr)
	return server.Serve(lis)
}

// mapErr turns group errors into gRPC statuses.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrKeyRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrGroupNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrGroupClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC is the client-side inverse of mapErr.
func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return ErrGroupNotFound
	case codes.FailedPrecondition:
		return ErrGroupClosed
	case codes.InvalidArgument:
		if st.Message() == ErrKeyRequired.Error() {
			return ErrKeyRequired
		}
	}
	return err
}
