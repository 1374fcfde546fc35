package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	FunctionRpcServiceName = "AzureFunctionsRpcMessages.FunctionRpc"
	EventStreamMethod      = "/AzureFunctionsRpcMessages.FunctionRpc/EventStream"
)

// FunctionRpcClient is the worker side of the FunctionRpc service.
type FunctionRpcClient interface {
	EventStream(ctx context.Context, opts ...grpc.CallOption) (FunctionRpc_EventStreamClient, error)
}

type functionRpcClient struct {
	cc grpc.ClientConnInterface
}

func NewFunctionRpcClient(cc grpc.ClientConnInterface) FunctionRpcClient {
	return &functionRpcClient{cc}
}

func (c *functionRpcClient) EventStream(ctx context.Context, opts ...grpc.CallOption) (FunctionRpc_EventStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &FunctionRpc_ServiceDesc.Streams[0], EventStreamMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &functionRpcEventStreamClient{stream}, nil
}

type FunctionRpc_EventStreamClient interface {
	Send(*StreamingMessage) error
	Recv() (*StreamingMessage, error)
	grpc.ClientStream
}

type functionRpcEventStreamClient struct {
	grpc.ClientStream
}

func (x *functionRpcEventStreamClient) Send(m *StreamingMessage) error {
	return x.ClientStream.SendMsg(m)
}

func (x *functionRpcEventStreamClient) Recv() (*StreamingMessage, error) {
	m := new(StreamingMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FunctionRpcServer is the host side of the FunctionRpc service. The worker
// never serves it; it exists for host simulators and tests.
type FunctionRpcServer interface {
	EventStream(FunctionRpc_EventStreamServer) error
}

type UnimplementedFunctionRpcServer struct{}

func (UnimplementedFunctionRpcServer) EventStream(FunctionRpc_EventStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method EventStream not implemented")
}

func RegisterFunctionRpcServer(s grpc.ServiceRegistrar, srv FunctionRpcServer) {
	s.RegisterService(&FunctionRpc_ServiceDesc, srv)
}

func _FunctionRpc_EventStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(FunctionRpcServer).EventStream(&functionRpcEventStreamServer{stream})
}

type FunctionRpc_EventStreamServer interface {
	Send(*StreamingMessage) error
	Recv() (*StreamingMessage, error)
	grpc.ServerStream
}

type functionRpcEventStreamServer struct {
	grpc.ServerStream
}

func (x *functionRpcEventStreamServer) Send(m *StreamingMessage) error {
	return x.ServerStream.SendMsg(m)
}

func (x *functionRpcEventStreamServer) Recv() (*StreamingMessage, error) {
	m := new(StreamingMessage)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FunctionRpc_ServiceDesc describes the bidirectional EventStream.
var FunctionRpc_ServiceDesc = grpc.ServiceDesc{
	ServiceName: FunctionRpcServiceName,
	HandlerType: (*FunctionRpcServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "EventStream",
			Handler:       _FunctionRpc_EventStream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "FunctionRpc.proto",
}
