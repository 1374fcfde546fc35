package transport

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addrSeq atomic.Int32

func inprocConfig() *Config {
	cfg := DefaultConfig()
	cfg.Address = fmt.Sprintf("inproc://worker-transport-%d", addrSeq.Add(1))
	cfg.RecvTimeout = 2 * time.Second
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1:19090", cfg.Address)
	assert.True(t, cfg.Insecure)
	assert.Zero(t, cfg.RecvTimeout)
	assert.Equal(t, 5*time.Second, cfg.SendTimeout)
	assert.Equal(t, 128, cfg.ReadQLen)
	assert.Equal(t, 64, cfg.WriteQLen)
}

func TestConfig_TLSConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantNil bool
		wantErr bool
	}{
		{"insecure mode returns nil", &Config{Insecure: true}, true, false},
		{"secure mode without files", &Config{ServerName: "host.local"}, false, false},
		{"invalid CA file path", &Config{CAFile: "/nonexistent/ca.pem"}, false, true},
		{"invalid cert file path", &Config{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.config.TLSConfig()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.config.ServerName, got.ServerName)
		})
	}
}

func TestAddr(t *testing.T) {
	tests := []struct {
		address  string
		insecure bool
		want     string
	}{
		{"127.0.0.1:7071", true, "tcp://127.0.0.1:7071"},
		{"127.0.0.1:7071", false, "tls+tcp://127.0.0.1:7071"},
		{"inproc://host", false, "inproc://host"},
		{"ipc:///tmp/host.sock", true, "ipc:///tmp/host.sock"},
		{"tcp://10.0.0.1:1", false, "tcp://10.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, Addr(&Config{Address: tt.address, Insecure: tt.insecure}))
		})
	}
}

func TestConn_PairExchange(t *testing.T) {
	cfg := inprocConfig()
	host, err := Listen(cfg)
	require.NoError(t, err)
	defer host.Close()

	worker, err := Dial(cfg)
	require.NoError(t, err)
	defer worker.Close()

	require.NoError(t, worker.Send([]byte("start")))
	got, err := host.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("start"), got)

	require.NoError(t, host.Send([]byte("init")))
	got, err = worker.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("init"), got)
}

func TestConn_Close(t *testing.T) {
	cfg := inprocConfig()
	cfg.RecvTimeout = 0
	host, err := Listen(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := host.Recv()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, host.Close())
	assert.True(t, host.IsClosed())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not return after Close")
	}

	assert.ErrorIs(t, host.Send([]byte("x")), ErrClosed)
	assert.NoError(t, host.Close())
}

func TestDial_NoListener(t *testing.T) {
	_, err := Dial(&Config{Address: "tcp://127.0.0.1:1", Insecure: true})
	assert.Error(t, err)
}
