package security

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "catpoint.v1.SecurityService"

// Full method names used by clients.
const (
	GetStatusMethod              = "/" + ServiceName + "/GetStatus"
	SetArmingStatusMethod        = "/" + ServiceName + "/SetArmingStatus"
	SetAlarmStatusMethod         = "/" + ServiceName + "/SetAlarmStatus"
	ProcessImageMethod           = "/" + ServiceName + "/ProcessImage"
	AddSensorMethod              = "/" + ServiceName + "/AddSensor"
	RemoveSensorMethod           = "/" + ServiceName + "/RemoveSensor"
	ChangeSensorActivationMethod = "/" + ServiceName + "/ChangeSensorActivation"
)

// SecurityServiceServer is the server API of the security service.
type SecurityServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	SetArmingStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	SetAlarmStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ProcessImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error)
	AddSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RemoveSensor(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error)
	ChangeSensorActivation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterSecurityServiceServer registers srv on s.
func RegisterSecurityServiceServer(s grpc.ServiceRegistrar, srv SecurityServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unaryHandler builds a grpc.MethodDesc handler for a typed unary method.
func unaryHandler[Req any, Resp any](
	fullMethod string,
	newRequest func() *Req,
	call func(srv SecurityServiceServer, ctx context.Context, req *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newRequest()
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(SecurityServiceServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(*Req)

			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the grpc.ServiceDesc for the security service.
//
//nolint:gochecknoglobals // Service descriptors are package level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SecurityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler: unaryHandler(GetStatusMethod, func() *emptypb.Empty { return new(emptypb.Empty) },
				func(s SecurityServiceServer, ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
					return s.GetStatus(ctx, req)
				}),
		},
		{
			MethodName: "SetArmingStatus",
			Handler: unaryHandler(SetArmingStatusMethod, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				func(s SecurityServiceServer, ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
					return s.SetArmingStatus(ctx, req)
				}),
		},
		{
			MethodName: "SetAlarmStatus",
			Handler: unaryHandler(SetAlarmStatusMethod, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				func(s SecurityServiceServer, ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
					return s.SetAlarmStatus(ctx, req)
				}),
		},
		{
			MethodName: "ProcessImage",
			Handler: unaryHandler(ProcessImageMethod, func() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) },
				func(s SecurityServiceServer, ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
					return s.ProcessImage(ctx, req)
				}),
		},
		{
			MethodName: "AddSensor",
			Handler: unaryHandler(AddSensorMethod, func() *structpb.Struct { return new(structpb.Struct) },
				func(s SecurityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
					return s.AddSensor(ctx, req)
				}),
		},
		{
			MethodName: "RemoveSensor",
			Handler: unaryHandler(RemoveSensorMethod, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				func(s SecurityServiceServer, ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
					return s.RemoveSensor(ctx, req)
				}),
		},
		{
			MethodName: "ChangeSensorActivation",
			Handler: unaryHandler(ChangeSensorActivationMethod, func() *structpb.Struct { return new(structpb.Struct) },
				func(s SecurityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
					return s.ChangeSensorActivation(ctx, req)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/catpoint/v1/security.proto",
}
