package worker

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/transport/interceptors"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/transport/jsoncodec"
)

// GRPCChannel is a HostChannel over the FunctionRpc EventStream.
type GRPCChannel struct {
	conn   *grpc.ClientConn
	stream rpc.FunctionRpc_EventStreamClient
	cancel context.CancelFunc
	once   sync.Once
}

// DialGRPC opens the EventStream on target. maxMessageLength bounds both
// directions when positive. Extra options are appended after the defaults.
func DialGRPC(ctx context.Context, target string, maxMessageLength int, extra ...grpc.DialOption) (*GRPCChannel, error) {
	callOpts := []grpc.CallOption{grpc.CallContentSubtype(jsoncodec.Name)}
	if maxMessageLength > 0 {
		callOpts = append(callOpts,
			grpc.MaxCallRecvMsgSize(maxMessageLength),
			grpc.MaxCallSendMsgSize(maxMessageLength))
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(callOpts...),
	}
	opts = append(opts, interceptors.Chain(nil)...)
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for host at %s: %w", target, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := rpc.NewFunctionRpcClient(conn).EventStream(streamCtx)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to open event stream to %s: %w", target, err)
	}

	logInfof("Connected to host: %s", target)
	return &GRPCChannel{conn: conn, stream: stream, cancel: cancel}, nil
}

func (g *GRPCChannel) Send(msg *rpc.StreamingMessage) error {
	return g.stream.Send(msg)
}

func (g *GRPCChannel) Recv() (*rpc.StreamingMessage, error) {
	return g.stream.Recv()
}

// Close half-closes the stream and tears down the connection.
func (g *GRPCChannel) Close() error {
	var err error
	g.once.Do(func() {
		_ = g.stream.CloseSend()
		g.cancel()
		err = g.conn.Close()
	})
	return err
}
