package transport

import (
	"context"
	"net"
	"strconv"
	"time"
)

// DefaultPort is the conventional HaLink device port.
const DefaultPort = 5000

// DefaultDialTimeout bounds a single connect attempt.
const DefaultDialTimeout = 5 * time.Second

// Dialer opens byte-stream connections to devices.
// *net.Dialer satisfies it; tests substitute in-memory pipes.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext calls f.
func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// NewTCPDialer returns a dialer with the HaLink TCP keepalive settings.
func NewTCPDialer(timeout time.Duration) *net.Dialer {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &net.Dialer{
		Timeout:         timeout,
		KeepAliveConfig: DefaultTCPKeepAlive(),
	}
}

// Address joins host and port, applying DefaultPort when port is zero.
func Address(host string, port int) string {
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
