package transport

import (
	"errors"
	"fmt"
	"sync"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pair"
	_ "go.nanomsg.org/mangos/v3/transport/inproc"
	_ "go.nanomsg.org/mangos/v3/transport/ipc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"
	_ "go.nanomsg.org/mangos/v3/transport/tlstcp"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// Conn is one end of a bidirectional NNG pair link. Either side may send at
// any time; framing is left to the caller.
type Conn struct {
	sock    mangos.Socket
	config  *Config
	closing chan struct{}
	once    sync.Once
}

// Dial connects to the peer listening at config.Address.
func Dial(config *Config) (*Conn, error) {
	c, err := newConn(config)
	if err != nil {
		return nil, err
	}

	addr := Addr(config)
	if err := c.sock.Dial(addr); err != nil {
		c.sock.Close()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return c, nil
}

// Listen accepts a peer at config.Address. The host side of the link and
// tests use it.
func Listen(config *Config) (*Conn, error) {
	c, err := newConn(config)
	if err != nil {
		return nil, err
	}

	addr := Addr(config)
	if err := c.sock.Listen(addr); err != nil {
		c.sock.Close()
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return c, nil
}

func newConn(config *Config) (*Conn, error) {
	if config == nil {
		config = DefaultConfig()
	}
	sock, err := pair.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("create pair socket: %w", err)
	}

	if !config.Insecure {
		tlsConfig, err := config.TLSConfig()
		if err != nil {
			sock.Close()
			return nil, fmt.Errorf("tls config: %w", err)
		}
		if err := sock.SetOption(mangos.OptionTLSConfig, tlsConfig); err != nil {
			sock.Close()
			return nil, fmt.Errorf("set tls config: %w", err)
		}
	}

	opts := []struct {
		name  string
		value any
		set   bool
	}{
		{mangos.OptionSendDeadline, config.SendTimeout, config.SendTimeout > 0},
		{mangos.OptionRecvDeadline, config.RecvTimeout, config.RecvTimeout > 0},
		{mangos.OptionReadQLen, config.ReadQLen, config.ReadQLen > 0},
		{mangos.OptionWriteQLen, config.WriteQLen, config.WriteQLen > 0},
	}
	for _, o := range opts {
		if !o.set {
			continue
		}
		if err := sock.SetOption(o.name, o.value); err != nil {
			sock.Close()
			return nil, fmt.Errorf("set %s: %w", o.name, err)
		}
	}

	return &Conn{sock: sock, config: config, closing: make(chan struct{})}, nil
}

// Send writes one message body.
func (c *Conn) Send(body []byte) error {
	if c.IsClosed() {
		return ErrClosed
	}
	if err := c.sock.Send(body); err != nil {
		if errors.Is(err, mangos.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Recv blocks until a message body arrives, the receive deadline passes, or
// the connection is closed.
func (c *Conn) Recv() ([]byte, error) {
	body, err := c.sock.Recv()
	if err != nil {
		if c.IsClosed() || errors.Is(err, mangos.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("recv: %w", err)
	}
	return body, nil
}

// Close closes the connection. Pending Recv calls return ErrClosed.
func (c *Conn) Close() error {
	var closeErr error
	c.once.Do(func() {
		close(c.closing)
		closeErr = c.sock.Close()
	})
	return closeErr
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}
