// Package transport carries framed worker messages over an NNG pair socket.
// The host listens and the worker dials; either side may send at any time.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config configures an NNG link. It is embedded in the worker config under
// the nng key.
type Config struct {
	// Address is a full NNG URL or a bare host:port.
	Address string `yaml:"address"`

	Insecure   bool   `yaml:"insecure"`
	CAFile     string `yaml:"caFile"`
	CertFile   string `yaml:"certFile"`
	KeyFile    string `yaml:"keyFile"`
	ServerName string `yaml:"serverName"`

	// RecvTimeout of zero blocks until a message arrives or the socket closes.
	RecvTimeout time.Duration `yaml:"recvTimeout"`
	SendTimeout time.Duration `yaml:"sendTimeout"`

	ReadQLen  int `yaml:"readQLen"`
	WriteQLen int `yaml:"writeQLen"`
}

// DefaultConfig returns an insecure TCP config for a local host.
func DefaultConfig() *Config {
	return &Config{
		Address:     "127.0.0.1:19090",
		Insecure:    true,
		SendTimeout: 5 * time.Second,
		ReadQLen:    128,
		WriteQLen:   64,
	}
}

// TLSConfig builds the TLS settings for a tls+tcp link. It returns nil when
// the link is insecure. The CA pool verifies both peers so the same config
// serves the dialing worker and a listening test host.
func (c *Config) TLSConfig() (*tls.Config, error) {
	if c.Insecure {
		return nil, nil
	}
	out := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: c.ServerName}

	if c.CAFile != "" {
		pool, err := loadCertPool(c.CAFile)
		if err != nil {
			return nil, err
		}
		out.RootCAs = pool
		out.ClientCAs = pool
	}
	if c.CertFile != "" && c.KeyFile != "" {
		pair, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load key pair %s: %w", c.CertFile, err)
		}
		out.Certificates = []tls.Certificate{pair}
	}
	return out, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("CA file holds no PEM certificates")
	}
	return pool, nil
}

var schemes = []string{"inproc://", "ipc://", "tcp://", "tls+tcp://", "ws://", "wss://"}

// Addr returns the URL to dial or listen on. A bare host:port gets tcp://,
// or tls+tcp:// when the link is secure.
func Addr(cfg *Config) string {
	for _, s := range schemes {
		if strings.HasPrefix(cfg.Address, s) {
			return cfg.Address
		}
	}
	if cfg.Insecure {
		return "tcp://" + cfg.Address
	}
	return "tls+tcp://" + cfg.Address
}
