package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/halink-protocol/halink-go/pkg/log"
)

// Connection errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectionClosed = errors.New("connection closed")
)

// readBufferSize is the socket read chunk size.
const readBufferSize = 1024

// ConnectionConfig configures a device connection.
type ConnectionConfig struct {
	// MaxFrameSize is the reassembly limit (default: 4096).
	MaxFrameSize int

	// KeepAlive configures the application ping.
	KeepAlive KeepAliveConfig

	// WriteTimeout bounds a single frame write (0 = no timeout).
	WriteTimeout time.Duration

	// ConnectionID and DeviceID label trace events.
	ConnectionID string
	DeviceID     string

	// Logger receives protocol trace events (optional).
	Logger log.Logger
}

// DefaultConnectionConfig returns the default connection configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxFrameSize: DefaultMaxFrameSize,
		KeepAlive:    DefaultKeepAliveConfig(),
		WriteTimeout: 5 * time.Second,
	}
}

// ConnectionHandler receives connection events. OnFrame and OnOverflow
// are called from the read goroutine in stream order. OnClose may come
// from the read goroutine or the keepalive goroutine.
type ConnectionHandler interface {
	// OnFrame is called for each inbound frame. Keepalive frames are
	// not delivered.
	OnFrame(frame []byte)

	// OnOverflow is called when a frame exceeded the maximum size.
	OnOverflow(discarded int)

	// OnClose is called once when the connection ends for any reason
	// other than Close. err describes the failure.
	OnClose(err error)
}

// Connection owns one device socket: a read loop feeding a Decoder,
// serialized frame writes and the keepalive.
type Connection struct {
	config  ConnectionConfig
	handler ConnectionHandler

	conn      net.Conn
	writer    *FrameWriter
	decoder   *Decoder
	keepAlive *KeepAlive

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	writeMu   sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc

	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	overflows atomic.Uint64
}

// NewConnection wraps an established socket. Call Start to begin reading.
func NewConnection(conn net.Conn, config ConnectionConfig, handler ConnectionHandler) *Connection {
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}

	c := &Connection{
		config:  config,
		handler: handler,
		conn:    conn,
		writer:  NewFrameWriter(conn),
		decoder: NewDecoder(config.MaxFrameSize),
		done:    make(chan struct{}),
	}
	if config.Logger != nil {
		c.writer.SetLogger(config.Logger, config.ConnectionID, config.DeviceID)
	}
	c.decoder.OnOverflow = c.onOverflow
	c.keepAlive = NewKeepAlive(config.KeepAlive, c.ping, c.fail)
	return c
}

// Start launches the read loop and keepalive.
func (c *Connection) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.keepAlive.Start(c.ctx)
	go c.readLoop()
}

// Send writes one frame. Concurrent calls are serialized.
func (c *Connection) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	if err := c.writer.WriteFrame(payload); err != nil {
		return err
	}
	c.framesOut.Add(1)
	c.keepAlive.MarkWrite()
	return nil
}

func (c *Connection) ping() error {
	return c.Send(PingFrame)
}

// Close closes the socket without calling OnClose.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.keepAlive.Stop()
		if c.cancel != nil {
			c.cancel()
		}
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the read loop has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// RemoteAddr returns the device address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ConnectionID returns the trace label of this connection.
func (c *Connection) ConnectionID() string {
	return c.config.ConnectionID
}

// Stats returns frame counters and keepalive state.
func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		FramesIn:  c.framesIn.Load(),
		FramesOut: c.framesOut.Load(),
		Overflows: c.overflows.Load(),
		KeepAlive: c.keepAlive.Stats(),
	}
}

// ConnectionStats contains per-connection counters.
type ConnectionStats struct {
	FramesIn  uint64
	FramesOut uint64
	Overflows uint64
	KeepAlive KeepAliveStats
}

// fail tears the connection down after a keepalive failure.
func (c *Connection) fail(err error) {
	c.shutdown(fmt.Errorf("keepalive: %w", err))
}

// shutdown closes the socket and reports err once, unless Close was
// called first.
func (c *Connection) shutdown(err error) {
	reported := false
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.keepAlive.Stop()
		if c.cancel != nil {
			c.cancel()
		}
		_ = c.conn.Close()
		reported = true
	})
	if reported && c.handler != nil {
		c.handler.OnClose(err)
	}
}

func (c *Connection) readLoop() {
	defer close(c.done)

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.keepAlive.MarkRead()
			for _, frame := range c.decoder.Feed(buf[:n]) {
				c.deliver(frame)
			}
		}
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.shutdown(fmt.Errorf("read: %w", err))
			return
		}
	}
}

func (c *Connection) deliver(frame []byte) {
	if c.config.Logger != nil {
		c.config.Logger.Log(makeFrameEvent(frame, log.DirectionIn, c.config.ConnectionID, c.config.DeviceID))
	}
	if IsKeepAlive(frame) {
		return
	}
	c.framesIn.Add(1)
	if c.handler != nil && !c.closed.Load() {
		c.handler.OnFrame(frame)
	}
}

func (c *Connection) onOverflow(discarded int) {
	c.overflows.Add(1)
	if c.config.Logger != nil {
		c.config.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: c.config.ConnectionID,
			DeviceID:     c.config.DeviceID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: fmt.Sprintf("%v: discarded %d bytes (max %d)", ErrFrameOverflow, discarded, c.decoder.MaxSize()),
				Reason:  "frame_overflow",
			},
		})
	}
	if c.handler != nil {
		c.handler.OnOverflow(discarded)
	}
}
