package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"seisqc/pkg/seisqc"
)

// SimpleMetricsServer is the server API of the seisqc.v1.SimpleMetrics
// service. Messages are protobuf Structs laid out as described by the
// request and response types of package seisqc.
type SimpleMetricsServer interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterSimpleMetricsServer registers srv on gs.
func RegisterSimpleMetricsServer(gs grpc.ServiceRegistrar, srv SimpleMetricsServer) {
	gs.RegisterService(&SimpleMetricsServiceDesc, srv)
}

type structMethod func(SimpleMetricsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a Struct-to-Struct method to a grpc.MethodDesc handler.
func unaryHandler(fullMethod string, call structMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SimpleMetricsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SimpleMetricsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SimpleMetricsServiceDesc describes the seisqc.v1.SimpleMetrics service.
var SimpleMetricsServiceDesc = grpc.ServiceDesc{
	ServiceName: seisqc.ServiceName,
	HandlerType: (*SimpleMetricsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: unaryHandler(seisqc.RunMethod, SimpleMetricsServer.Run)},
		{MethodName: "List", Handler: unaryHandler(seisqc.ListMethod, SimpleMetricsServer.List)},
	},
	Streams: []grpc.StreamDesc{},
}
