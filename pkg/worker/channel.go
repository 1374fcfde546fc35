package worker

import (
	"io"
	"sync"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// HostChannel is the worker's link to the host. Send is called from a single
// writer goroutine and Recv from a single reader goroutine. Recv returns
// io.EOF once the link is closed.
type HostChannel interface {
	Send(msg *rpc.StreamingMessage) error
	Recv() (*rpc.StreamingMessage, error)
	Close() error
}

// pipeEnd is one side of an in-memory channel pair.
type pipeEnd struct {
	in     <-chan *rpc.StreamingMessage
	out    chan<- *rpc.StreamingMessage
	closed chan struct{}
	once   *sync.Once
}

// NewPipe returns two connected in-memory channels. Closing either end
// closes both.
func NewPipe() (HostChannel, HostChannel) {
	a := make(chan *rpc.StreamingMessage, 64)
	b := make(chan *rpc.StreamingMessage, 64)
	closed := make(chan struct{})
	once := &sync.Once{}
	return &pipeEnd{in: a, out: b, closed: closed, once: once},
		&pipeEnd{in: b, out: a, closed: closed, once: once}
}

func (p *pipeEnd) Send(msg *rpc.StreamingMessage) error {
	select {
	case <-p.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *pipeEnd) Recv() (*rpc.StreamingMessage, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.closed:
		// Deliver what was sent before the close.
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return nil, io.EOF
		}
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
