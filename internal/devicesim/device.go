package devicesim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/halink-protocol/halink-go/pkg/transport"
	"github.com/halink-protocol/halink-go/pkg/wire"
)

// ErrMalformedSet is returned by ParseSet for frames that are neither
// light nor object SET commands.
var ErrMalformedSet = errors.New("malformed SET frame")

// receivedQueueSize bounds the unread SET frames kept by a Device.
const receivedQueueSize = 256

// Frame is one SET frame received from a client.
type Frame struct {
	Data    []byte
	Entries []wire.SetEntry
	At      time.Time
}

// Device is a simulated HaLink device listening for client connections.
type Device struct {
	cfg    Config
	config []byte
	logger *slog.Logger

	ln       net.Listener
	received chan Frame
	accepted atomic.Int64
	closed   atomic.Bool
	wg       sync.WaitGroup

	mu     sync.Mutex
	conns  map[*peer]struct{}
	values map[string]any
}

type peer struct {
	conn   net.Conn
	writer *transport.FrameWriter
}

// Listen starts a device on addr ("127.0.0.1:0" picks a free port).
func Listen(addr string, cfg Config, logger *slog.Logger) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	frame, err := cfg.ConfigFrame()
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	d := &Device{
		cfg:      cfg,
		config:   frame,
		logger:   logger.With("sim", cfg.Name),
		ln:       ln,
		received: make(chan Frame, receivedQueueSize),
		conns:    make(map[*peer]struct{}),
		values:   make(map[string]any),
	}
	for _, e := range cfg.Entities {
		if e.Value != nil {
			d.values[e.Key()] = e.Value
		}
	}

	d.wg.Add(1)
	go d.acceptLoop()
	return d, nil
}

// Addr returns the listen address.
func (d *Device) Addr() string {
	return d.ln.Addr().String()
}

// Received delivers SET frames in arrival order. Frames are dropped when
// nobody reads and the buffer is full.
func (d *Device) Received() <-chan Frame {
	return d.received
}

// Accepted returns the number of connections accepted so far.
func (d *Device) Accepted() int {
	return int(d.accepted.Load())
}

// Connected returns the number of open client connections.
func (d *Device) Connected() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Value returns the current simulated value of an entity.
func (d *Device) Value(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.values[key]
	return v, ok
}

// SendConfig sends the CONFIG to every client.
func (d *Device) SendConfig() error {
	return d.Broadcast(d.config)
}

// SendState updates an entity value and reports it to every client.
func (d *Device) SendState(key string, value any) error {
	d.mu.Lock()
	d.values[key] = value
	d.mu.Unlock()

	frame, err := StateFrame(key, value)
	if err != nil {
		return err
	}
	return d.Broadcast(frame)
}

// SendEvent emits an EVENT to every client.
func (d *Device) SendEvent(key string, payload map[string]any) error {
	frame, err := EventFrame(key, payload)
	if err != nil {
		return err
	}
	return d.Broadcast(frame)
}

// Broadcast writes a raw frame payload to every client.
func (d *Device) Broadcast(payload []byte) error {
	d.mu.Lock()
	peers := make([]*peer, 0, len(d.conns))
	for p := range d.conns {
		peers = append(peers, p)
	}
	d.mu.Unlock()

	var errs []error
	for _, p := range peers {
		if err := p.writer.WriteFrame(payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DropConnections closes every client connection. The listener keeps
// accepting.
func (d *Device) DropConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for p := range d.conns {
		_ = p.conn.Close()
	}
}

// Close stops the listener and drops all clients.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	err := d.ln.Close()
	d.DropConnections()
	d.wg.Wait()
	return err
}

// Run blocks until ctx is done, then closes the device.
func (d *Device) Run(ctx context.Context) error {
	<-ctx.Done()
	return d.Close()
}

func (d *Device) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			if !d.closed.Load() {
				d.logger.Error("accept failed", "error", err)
			}
			return
		}
		d.accepted.Add(1)

		p := &peer{conn: conn, writer: transport.NewFrameWriter(conn)}
		d.mu.Lock()
		d.conns[p] = struct{}{}
		d.mu.Unlock()

		d.wg.Add(1)
		go d.serve(p)
	}
}

func (d *Device) serve(p *peer) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.conns, p)
		d.mu.Unlock()
		_ = p.conn.Close()
	}()

	d.logger.Info("client connected", "remote", p.conn.RemoteAddr())
	if !d.cfg.Silent {
		if err := d.greet(p); err != nil {
			d.logger.Warn("greeting failed", "error", err)
			return
		}
	}

	dec := transport.NewDecoder(transport.DefaultMaxFrameSize)
	buf := make([]byte, 1024)
	for {
		n, err := p.conn.Read(buf)
		for _, frame := range dec.Feed(buf[:n]) {
			d.handleFrame(frame)
		}
		if err != nil {
			d.logger.Info("client disconnected", "remote", p.conn.RemoteAddr())
			return
		}
	}
}

// greet sends the CONFIG followed by the current entity values.
func (d *Device) greet(p *peer) error {
	if err := p.writer.WriteFrame(d.config); err != nil {
		return err
	}
	for _, e := range d.cfg.Entities {
		v, ok := d.Value(e.Key())
		if !ok {
			continue
		}
		frame, err := StateFrame(e.Key(), v)
		if err != nil {
			return err
		}
		if err := p.writer.WriteFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) handleFrame(frame []byte) {
	if transport.IsKeepAlive(frame) {
		return
	}

	entries, err := ParseSet(frame)
	if err != nil {
		d.logger.Warn("ignoring frame", "error", err, "frame", string(frame))
		return
	}

	f := Frame{Data: append([]byte(nil), frame...), Entries: entries, At: time.Now()}
	select {
	case d.received <- f:
	default:
		d.logger.Warn("received buffer full, dropping frame")
	}

	if !d.cfg.Echo {
		return
	}
	for _, e := range entries {
		if err := d.SendState(e.Key, e.Value); err != nil {
			d.logger.Warn("echo failed", "key", e.Key, "error", err)
		}
	}
}

// ParseSet decodes a light ("key=value") or object ({"set":{...}}) SET
// frame. Light values that look numeric are returned as numbers.
func ParseSet(frame []byte) ([]wire.SetEntry, error) {
	text := strings.TrimSpace(string(frame))
	if strings.HasPrefix(text, "{") {
		return parseObjectSet(frame)
	}

	key, value, ok := strings.Cut(text, "=")
	if !ok || key == "" {
		return nil, ErrMalformedSet
	}
	return []wire.SetEntry{{Key: key, Value: lightValue(value)}}, nil
}

func parseObjectSet(frame []byte) ([]wire.SetEntry, error) {
	v, err := wire.Decode(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSet, err)
	}
	root, _ := v.(wire.Object)
	body, ok := root.Get(wire.KeySet)
	if !ok {
		return nil, ErrMalformedSet
	}
	members, ok := body.(wire.Object)
	if !ok {
		return nil, ErrMalformedSet
	}

	entries := make([]wire.SetEntry, 0, len(members))
	for _, m := range members {
		entry := wire.SetEntry{Key: m.Key}
		fields, ok := m.Value.(wire.Object)
		if !ok {
			entry.Value = wire.Plain(m.Value)
			entries = append(entries, entry)
			continue
		}
		if val, ok := fields.Get(wire.KeyValue); ok {
			entry.Value = wire.Plain(val)
		}
		if ts, ok := fields.Get(wire.KeyTimestamp); ok {
			if sec, ok := wire.Plain(ts).(int64); ok {
				t := time.Unix(sec, 0)
				entry.Timestamp = &t
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func lightValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
