package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Keep-alive constants.
const (
	// DefaultPingInterval is the idle time after which a ping is sent.
	DefaultPingInterval = 15 * time.Second

	// DefaultTCPKeepAliveIdle is the idle time before the first TCP probe.
	DefaultTCPKeepAliveIdle = 15 * time.Second

	// DefaultTCPKeepAliveInterval is the time between TCP probes.
	DefaultTCPKeepAliveInterval = 5 * time.Second

	// DefaultTCPKeepAliveCount is the number of unanswered probes before
	// the kernel drops the connection.
	DefaultTCPKeepAliveCount = 2
)

// ErrReadIdle indicates nothing was received within the read idle timeout.
var ErrReadIdle = errors.New("read idle timeout")

// DefaultTCPKeepAlive returns the OS keepalive settings for device sockets.
// Detection delay is Idle + Interval*Count (25 seconds).
func DefaultTCPKeepAlive() net.KeepAliveConfig {
	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     DefaultTCPKeepAliveIdle,
		Interval: DefaultTCPKeepAliveInterval,
		Count:    DefaultTCPKeepAliveCount,
	}
}

// KeepAliveConfig configures the application-level keepalive.
type KeepAliveConfig struct {
	// PingInterval is the idle time (no frame read or written) after which
	// a ping frame is sent. Zero disables pings.
	PingInterval time.Duration

	// ReadIdleTimeout fails the connection when nothing has been read for
	// this long. Zero disables the check.
	ReadIdleTimeout time.Duration
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval: DefaultPingInterval,
	}
}

// KeepAlive sends a ping whenever the connection has been idle for the
// ping interval and optionally detects a silent peer.
type KeepAlive struct {
	config KeepAliveConfig

	sendPing  func() error
	onTimeout func(err error)

	lastRead  atomic.Int64
	lastWrite atomic.Int64
	pings     atomic.Uint32

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	now     func() time.Time
}

// NewKeepAlive creates a keep-alive manager. onTimeout is called at most
// once, when a ping fails or the read idle timeout expires.
func NewKeepAlive(config KeepAliveConfig, sendPing func() error, onTimeout func(err error)) *KeepAlive {
	ka := &KeepAlive{
		config:    config,
		sendPing:  sendPing,
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
	now := ka.now().UnixNano()
	ka.lastRead.Store(now)
	ka.lastWrite.Store(now)
	return ka
}

// Start begins the keep-alive loop.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	if ka.running || (ka.config.PingInterval <= 0 && ka.config.ReadIdleTimeout <= 0) {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.stopCh = make(chan struct{})
	stopCh := ka.stopCh
	ka.mu.Unlock()

	go ka.loop(ctx, stopCh)
}

// Stop stops the keep-alive loop.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if !ka.running {
		return
	}

	ka.running = false
	close(ka.stopCh)
}

// IsRunning returns true if the loop is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// MarkRead records inbound traffic.
func (ka *KeepAlive) MarkRead() {
	ka.lastRead.Store(ka.now().UnixNano())
}

// MarkWrite records outbound traffic.
func (ka *KeepAlive) MarkWrite() {
	ka.lastWrite.Store(ka.now().UnixNano())
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	return KeepAliveStats{
		LastRead:  time.Unix(0, ka.lastRead.Load()),
		LastWrite: time.Unix(0, ka.lastWrite.Load()),
		PingsSent: ka.pings.Load(),
	}
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	LastRead  time.Time
	LastWrite time.Time
	PingsSent uint32
}

func (ka *KeepAlive) lastActivity() time.Time {
	r, w := ka.lastRead.Load(), ka.lastWrite.Load()
	return time.Unix(0, max(r, w))
}

// nextCheck returns how long to wait before the next deadline.
func (ka *KeepAlive) nextCheck(now time.Time) time.Duration {
	wait := time.Duration(-1)
	if ka.config.PingInterval > 0 {
		wait = ka.lastActivity().Add(ka.config.PingInterval).Sub(now)
	}
	if ka.config.ReadIdleTimeout > 0 {
		d := time.Unix(0, ka.lastRead.Load()).Add(ka.config.ReadIdleTimeout).Sub(now)
		if wait < 0 || d < wait {
			wait = d
		}
	}
	return max(wait, time.Millisecond)
}

func (ka *KeepAlive) loop(ctx context.Context, stopCh chan struct{}) {
	timer := time.NewTimer(ka.nextCheck(ka.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-timer.C:
			if err := ka.check(ka.now()); err != nil {
				ka.Stop()
				if ka.onTimeout != nil {
					ka.onTimeout(err)
				}
				return
			}
			timer.Reset(ka.nextCheck(ka.now()))
		}
	}
}

// check sends a ping if idle and reports a dead peer.
func (ka *KeepAlive) check(now time.Time) error {
	if ka.config.ReadIdleTimeout > 0 && now.Sub(time.Unix(0, ka.lastRead.Load())) >= ka.config.ReadIdleTimeout {
		return ErrReadIdle
	}
	if ka.config.PingInterval > 0 && now.Sub(ka.lastActivity()) >= ka.config.PingInterval {
		if err := ka.sendPing(); err != nil {
			return err
		}
		ka.pings.Add(1)
		ka.MarkWrite()
	}
	return nil
}
