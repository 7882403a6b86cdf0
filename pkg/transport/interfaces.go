package transport

import "net"

// FrameSender writes complete frames to a device.
// Implemented by Connection.
type FrameSender interface {
	// Send writes one frame; the terminator is appended.
	Send(payload []byte) error

	// Close closes the underlying socket.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ FrameSender = (*Connection)(nil)
	_ Dialer      = (*net.Dialer)(nil)
	_ Dialer      = DialerFunc(nil)
)
