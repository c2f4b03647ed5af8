package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "matchmaker.admin.v1.Moderation"

// ModerationServer is the server API. Requests and responses are
// structpb.Struct so the service needs no generated stubs.
type ModerationServer interface {
	Approve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ban(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Unban(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApproveUnpair(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DenyUnpair(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ForceUnpair(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Broadcast(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(ModerationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn call) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(ModerationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(ModerationServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Moderation service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ModerationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Approve", ModerationServer.Approve),
		unary("Reject", ModerationServer.Reject),
		unary("Ban", ModerationServer.Ban),
		unary("Unban", ModerationServer.Unban),
		unary("ApproveUnpair", ModerationServer.ApproveUnpair),
		unary("DenyUnpair", ModerationServer.DenyUnpair),
		unary("ForceUnpair", ModerationServer.ForceUnpair),
		unary("Stats", ModerationServer.Stats),
		unary("Broadcast", ModerationServer.Broadcast),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "",
}

// Invoke calls method on conn. Used by clients and tests.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, req *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}
