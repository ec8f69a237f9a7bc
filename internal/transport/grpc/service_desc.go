package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service. Requests and responses are
// google.protobuf.Struct envelopes, so no generated stubs are needed.
const ServiceName = "bookingdesk.v1.Appointments"

const (
	MethodCreateAppointment  = "/" + ServiceName + "/CreateAppointment"
	MethodResendOTP          = "/" + ServiceName + "/ResendOTP"
	MethodResolveAppointment = "/" + ServiceName + "/ResolveAppointment"
	MethodCancelAppointment  = "/" + ServiceName + "/CancelAppointment"
	MethodListAppointments   = "/" + ServiceName + "/ListAppointments"
)

type AppointmentsServiceServer interface {
	CreateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ResendOTP(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ResolveAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListAppointments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterAppointmentsServiceServer(s grpc.ServiceRegistrar, srv AppointmentsServiceServer) {
	s.RegisterService(&AppointmentsServiceDesc, srv)
}

func unaryHandler(fullMethod string, call func(srv AppointmentsServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AppointmentsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AppointmentsServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AppointmentsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AppointmentsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateAppointment",
			Handler:    unaryHandler(MethodCreateAppointment, AppointmentsServiceServer.CreateAppointment),
		},
		{
			MethodName: "ResendOTP",
			Handler:    unaryHandler(MethodResendOTP, AppointmentsServiceServer.ResendOTP),
		},
		{
			MethodName: "ResolveAppointment",
			Handler:    unaryHandler(MethodResolveAppointment, AppointmentsServiceServer.ResolveAppointment),
		},
		{
			MethodName: "CancelAppointment",
			Handler:    unaryHandler(MethodCancelAppointment, AppointmentsServiceServer.CancelAppointment),
		},
		{
			MethodName: "ListAppointments",
			Handler:    unaryHandler(MethodListAppointments, AppointmentsServiceServer.ListAppointments),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bookingdesk/v1/appointments.proto",
}

// Client calls the Appointments service over any connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAppointment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCreateAppointment, in, opts...)
}

func (c *Client) ResendOTP(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResendOTP, in, opts...)
}

func (c *Client) ResolveAppointment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResolveAppointment, in, opts...)
}

func (c *Client) CancelAppointment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCancelAppointment, in, opts...)
}

func (c *Client) ListAppointments(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListAppointments, in, opts...)
}
