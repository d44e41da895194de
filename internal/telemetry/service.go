package telemetry

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the gRPC service name, also used for health checks.
const ServiceName = "forager.telemetry.Telemetry"

const (
	WatchMethod  = "/" + ServiceName + "/Watch"
	LatestMethod = "/" + ServiceName + "/Latest"
)

// telemetryServer is the handler type the service descriptor dispatches to.
type telemetryServer interface {
	watch(ctx context.Context, send func(*structpb.Struct) error) error
	latestRPC(ctx context.Context) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*telemetryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Latest", Handler: latestHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "forager/telemetry",
}

// WatchStreamDesc describes the Watch stream for clients.
var WatchStreamDesc = &serviceDesc.Streams[0]

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(telemetryServer).watch(stream.Context(), func(st *structpb.Struct) error {
		return stream.SendMsg(st)
	})
}

func latestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(telemetryServer).latestRPC(ctx)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LatestMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(telemetryServer).latestRPC(ctx)
	}
	return interceptor(ctx, in, info, handler)
}

func (p *Publisher) watch(ctx context.Context, send func(*structpb.Struct) error) error {
	id, ch, first, err := p.addClient()
	if err != nil {
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	defer p.removeClient(id)

	if first != nil {
		if err := send(first); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopping:
			return nil
		case st := <-ch:
			if err := send(st); err != nil {
				return err
			}
		}
	}
}

func (p *Publisher) latestRPC(ctx context.Context) (*structpb.Struct, error) {
	st, err := p.Latest()
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return st, nil
}

// Watch opens a snapshot stream on conn and calls fn for each snapshot
// until fn returns false, ctx is done or the stream fails.
func Watch(ctx context.Context, conn grpc.ClientConnInterface, fn func(*structpb.Struct) bool) error {
	stream, err := conn.NewStream(ctx, WatchStreamDesc, WatchMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		st := new(structpb.Struct)
		if err := stream.RecvMsg(st); err != nil {
			return err
		}
		if !fn(st) {
			return nil
		}
	}
}

// Latest fetches the most recent snapshot over conn.
func Latest(ctx context.Context, conn grpc.ClientConnInterface) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, LatestMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}
