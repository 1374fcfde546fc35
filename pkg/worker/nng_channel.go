package worker

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/protocol"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/transport"
)

// NNGChannel is a HostChannel over an NNG pair socket. Each frame carries
// the 8-byte protocol header followed by the envelope as a protobuf Struct.
//
// The worker end only accepts request kinds. The host end accepts responses
// and stream events. Frames of any other kind are logged and skipped.
type NNGChannel struct {
	conn   *transport.Conn
	seq    atomic.Uint32
	accept func(*protocol.MessageInfo) bool
}

// DialNNG connects to a host listening at cfg.Address.
func DialNNG(cfg *transport.Config) (*NNGChannel, error) {
	conn, err := transport.Dial(cfg)
	if err != nil {
		return nil, err
	}
	logInfof("Connected to host: %s", transport.Addr(cfg))
	return &NNGChannel{conn: conn, accept: fromHost}, nil
}

// NewNNGChannel wraps an established connection as the host end of the
// link. Host simulators use it on the listening side.
func NewNNGChannel(conn *transport.Conn) *NNGChannel {
	return &NNGChannel{conn: conn, accept: fromWorker}
}

func fromHost(info *protocol.MessageInfo) bool   { return info.IsReq }
func fromWorker(info *protocol.MessageInfo) bool { return info.IsResp || info.IsEvent }

func (n *NNGChannel) Send(msg *rpc.StreamingMessage) error {
	body, err := protocol.Frame(msg, n.seq.Add(1))
	if err != nil {
		return err
	}
	return n.conn.Send(body)
}

// Recv returns the next envelope. Frames that fail to decode or that the
// peer should never send are logged and skipped.
func (n *NNGChannel) Recv() (*rpc.StreamingMessage, error) {
	for {
		body, err := n.conn.Recv()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return nil, io.EOF
			}
			return nil, err
		}
		info, err := protocol.ParseMessageInfo(body)
		if err != nil {
			logWarnf("Dropping frame %s: %v", protocol.DebugString(body), err)
			continue
		}
		if !n.accept(info) {
			logWarnf("Dropping unexpected frame %s", info)
			logDebugf("Dropped frame: %s", protocol.DebugStringWithBody(body))
			continue
		}
		_, msg, err := protocol.Unframe(body)
		if err != nil {
			logWarnf("Dropping frame %s: %v", protocol.DebugString(body), err)
			logDebugf("Dropped frame: %s", protocol.DebugStringWithBody(body))
			continue
		}
		return msg, nil
	}
}

func (n *NNGChannel) Close() error {
	return n.conn.Close()
}
