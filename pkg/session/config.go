package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/halink-protocol/halink-go/pkg/connection"
	"github.com/halink-protocol/halink-go/pkg/entity"
	"github.com/halink-protocol/halink-go/pkg/log"
	"github.com/halink-protocol/halink-go/pkg/transport"
)

// Default session timings.
const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultSetTTL           = 10 * time.Minute
	DefaultWriteTimeout     = 5 * time.Second
)

// NoPing disables the application ping when set as Config.PingInterval.
const NoPing time.Duration = -1

// Configuration errors.
var (
	ErrNoDeviceID = errors.New("device ID is required")
	ErrNoAddress  = errors.New("device address is required")
)

// Config configures a Session.
type Config struct {
	// DeviceID names the device in entity IDs, logs and metrics.
	DeviceID string

	// Address is the device host:port.
	Address string

	// MaxFrameSize is the inbound reassembly limit (default: 4096).
	MaxFrameSize int

	// HandshakeTimeout bounds the wait for the first valid CONFIG.
	HandshakeTimeout time.Duration

	// Backoff configures reconnect delays.
	Backoff connection.BackoffConfig

	// DialTimeout bounds a single connect attempt.
	DialTimeout time.Duration

	// PingInterval is the idle time after which an application ping is
	// sent (default: 15s). Any negative value, such as NoPing, disables
	// the ping.
	PingInterval time.Duration

	// ReadIdleTimeout drops the connection when nothing was received for
	// this long. Zero disables the check.
	ReadIdleTimeout time.Duration

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// SetTTL is how long a queued SET may wait for transmission.
	SetTTL time.Duration

	// EntityPolicy decides what happens to entities a resent CONFIG omits.
	EntityPolicy entity.Policy

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives protocol trace events (optional).
	ProtocolLogger log.Logger

	// Metrics receives counters and gauges (optional).
	Metrics *Metrics

	// Dialer opens device sockets (default: TCP with OS keepalive).
	Dialer transport.Dialer
}

// DefaultConfig returns a configuration with default timings. DeviceID
// and Address must still be set.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize:     transport.DefaultMaxFrameSize,
		HandshakeTimeout: DefaultHandshakeTimeout,
		Backoff:          connection.DefaultBackoffConfig(),
		DialTimeout:      transport.DefaultDialTimeout,
		PingInterval:     transport.DefaultKeepAliveConfig().PingInterval,
		WriteTimeout:     DefaultWriteTimeout,
		SetTTL:           DefaultSetTTL,
		EntityPolicy:     entity.RetainMissing,
	}
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.DeviceID == "" {
		return ErrNoDeviceID
	}
	if c.Address == "" {
		return ErrNoAddress
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", c.Address, err)
	}
	return nil
}

// withDefaults fills zero timings.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = def.MaxFrameSize
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.Backoff == (connection.BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	switch {
	case c.PingInterval == 0:
		c.PingInterval = def.PingInterval
	case c.PingInterval < 0:
		c.PingInterval = NoPing
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.SetTTL <= 0 {
		c.SetTTL = def.SetTTL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Dialer == nil {
		c.Dialer = transport.NewTCPDialer(c.DialTimeout)
	}
	return c
}
