package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halink-protocol/halink-go/pkg/connection"
	"github.com/halink-protocol/halink-go/pkg/entity"
	"github.com/halink-protocol/halink-go/pkg/log"
	"github.com/halink-protocol/halink-go/pkg/transport"
	"github.com/halink-protocol/halink-go/pkg/wire"
)

// Session errors.
var (
	ErrAlreadyStarted   = errors.New("session already started")
	ErrClosed           = errors.New("session closed")
	ErrNotActive        = errors.New("session not active")
	ErrHandshakeTimeout = errors.New("handshake timeout")
)

// SendResult is the outcome of SendSet.
type SendResult uint8

const (
	// Rejected means the command was not accepted and will never be sent.
	Rejected SendResult = iota

	// Accepted means the command was written to the socket.
	Accepted

	// Queued means the command waits for its transmission slot.
	Queued
)

// String returns the result name.
func (r SendResult) String() string {
	switch r {
	case Rejected:
		return "rejected"
	case Accepted:
		return "accepted"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// Session is the client side of one device connection.
type Session struct {
	cfg      Config
	handler  Handler
	logger   *slog.Logger
	warn     *warnLimiter
	metrics  *Metrics
	trace    log.Logger
	registry *entity.Registry
	dispatch *dispatcher

	// timeNow is replaced in tests.
	timeNow func() time.Time

	mu         sync.Mutex
	normalizer *wire.Normalizer
	machine    *connection.Machine
	backoff    *connection.Backoff
	queue      *setQueue
	ctx        context.Context
	cancel     context.CancelFunc
	stopWatch  func() bool
	closed     bool

	// epoch identifies the current connection attempt. Callbacks armed
	// for an older epoch are ignored.
	epoch  uint64
	conn   *transport.Connection
	connID string
	model  *wire.ConfigModel

	handshakeTimer *time.Timer
	retryTimer     *time.Timer
	drainTimer     *time.Timer
	drainGen       uint64
	lastDrain      time.Time

	stats Stats
}

// New creates a session for one device. handler may be nil.
func New(cfg Config, handler Handler) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if handler == nil {
		handler = HandlerFuncs{}
	}

	s := &Session{
		cfg:      cfg,
		handler:  handler,
		logger:   cfg.Logger.With("device", cfg.DeviceID),
		metrics:  cfg.Metrics,
		trace:    cfg.ProtocolLogger,
		registry: entity.NewRegistry(),
		dispatch: newDispatcher(),
		timeNow:  time.Now,
		backoff:  connection.NewBackoffWithConfig(cfg.Backoff),
		queue:    newSetQueue(cfg.SetTTL),
	}
	s.warn = newWarnLimiter(s.logger, s.now)
	s.normalizer = &wire.Normalizer{DeviceID: cfg.DeviceID, Logger: cfg.Logger, Now: s.now}
	s.machine = connection.NewMachine(s.onTransition)
	s.metrics.state(cfg.DeviceID, connection.StateDisconnected)
	return s, nil
}

func (s *Session) now() time.Time {
	return s.timeNow()
}

// DeviceID returns the configured device ID.
func (s *Session) DeviceID() string {
	return s.cfg.DeviceID
}

// Start begins connecting. The session runs until Close is called or
// ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.machine.State() != connection.StateDisconnected {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.stopWatch = context.AfterFunc(ctx, func() { _ = s.Close() })
	s.dispatch.start()

	s.logger.Info("session starting", "address", s.cfg.Address)
	s.connectLocked(connection.EventConnect, "start")
	return nil
}

// Close tears the session down: timers are cancelled, the socket is
// closed and pending notifications are discarded. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	_, _ = s.machine.Fire(connection.EventClose, "closed")
	s.epoch++

	stopTimer(&s.handshakeTimer)
	stopTimer(&s.retryTimer)
	s.stopDrainLocked()

	conn := s.conn
	s.conn = nil
	if n := s.queue.reset(); n > 0 {
		s.logger.Debug("discarding queued SET commands", "count", n)
	}
	s.metrics.queueDepth(s.cfg.DeviceID, 0)

	if s.cancel != nil {
		s.cancel()
	}
	stopWatch := s.stopWatch
	s.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	s.dispatch.stop()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// State returns the connection state.
func (s *Session) State() connection.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// Available reports whether the session is Active.
func (s *Session) Available() bool {
	return s.State().Available()
}

// Config returns a copy of the last accepted CONFIG, or nil.
func (s *Session) Config() *wire.ConfigModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Clone()
}

// Entities returns the live entity set in declaration order.
func (s *Session) Entities() []entity.Snapshot {
	return s.registry.Snapshot()
}

// Entity returns one entity of the live set.
func (s *Session) Entity(key string) (entity.Snapshot, bool) {
	desc, view, ok := s.registry.Get(key)
	if !ok {
		return entity.Snapshot{}, false
	}
	return entity.Snapshot{Descriptor: desc, View: view}, true
}

// SendSet transmits a SET command. With a zero delay_ms the command is
// written immediately and rejected unless the session is Active. With a
// positive delay_ms the command is queued for paced transmission and
// dropped if it cannot be sent within the SET TTL.
func (s *Session) SendSet(cmd wire.SetCommand) (SendResult, error) {
	res, err := s.sendSet(cmd)
	s.metrics.setCommand(s.cfg.DeviceID, res)
	return res, err
}

// SetValue validates a user action against the live entity and sends
// the resulting SET.
func (s *Session) SetValue(key string, input any) (SendResult, error) {
	v, err := s.registry.SetValue(key, input)
	if err != nil {
		s.metrics.setCommand(s.cfg.DeviceID, Rejected)
		s.mu.Lock()
		s.stats.SetsRejected++
		s.mu.Unlock()
		return Rejected, err
	}
	return s.SendSet(wire.NewSetCommand(key, v))
}

func (s *Session) sendSet(cmd wire.SetCommand) (SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(cmd.Entries) == 0 {
		s.stats.SetsRejected++
		return Rejected, wire.ErrEmptyCommand
	}
	if s.closed {
		s.stats.SetsRejected++
		return Rejected, ErrClosed
	}
	if s.model == nil {
		s.stats.SetsRejected++
		return Rejected, ErrNotActive
	}
	if _, err := s.model.Encoder().Encode(cmd, s.now()); err != nil {
		s.stats.SetsRejected++
		return Rejected, err
	}

	// A non-empty queue keeps FIFO order even after delay_ms drops to 0.
	if s.model.DelayMS > 0 || s.queue.len() > 0 {
		s.queue.push(cmd, s.now())
		s.stats.SetsQueued++
		s.metrics.queueDepth(s.cfg.DeviceID, s.queue.len())
		s.traceQueue("ENQUEUED", cmd)
		s.scheduleDrainLocked()
		return Queued, nil
	}

	if s.machine.State() != connection.StateActive {
		s.stats.SetsRejected++
		return Rejected, ErrNotActive
	}
	if err := s.transmitLocked(cmd); err != nil {
		s.stats.SetsRejected++
		return Rejected, err
	}
	s.stats.SetsSent++
	return Accepted, nil
}

// Stats returns a snapshot of session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.State = s.machine.State()
	st.ConnectionID = s.connID
	st.QueueDepth = s.queue.len()
	st.Backoff = s.backoff.Current()
	st.Entities = s.registry.Len()
	if s.conn != nil {
		cs := s.conn.Stats()
		st.Connection = &cs
	}
	return st
}

// connectLocked fires ev and starts a connect attempt.
func (s *Session) connectLocked(ev connection.Event, reason string) {
	if _, err := s.machine.Fire(ev, reason); err != nil {
		s.logger.Error("connect refused by state machine", "event", ev, "error", err)
		return
	}
	s.epoch++
	go s.dial(s.ctx, s.epoch)
}

func (s *Session) dial(ctx context.Context, epoch uint64) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	nc, err := s.cfg.Dialer.DialContext(dctx, "tcp", s.cfg.Address)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch {
		if nc != nil {
			_ = nc.Close()
		}
		return
	}
	if err != nil {
		s.failLocked(fmt.Errorf("dial %s: %w", s.cfg.Address, err))
		return
	}

	s.connID = uuid.NewString()
	conn := transport.NewConnection(nc, transport.ConnectionConfig{
		MaxFrameSize: s.cfg.MaxFrameSize,
		KeepAlive: transport.KeepAliveConfig{
			PingInterval:    s.cfg.PingInterval,
			ReadIdleTimeout: s.cfg.ReadIdleTimeout,
		},
		WriteTimeout: s.cfg.WriteTimeout,
		ConnectionID: s.connID,
		DeviceID:     s.cfg.DeviceID,
		Logger:       s.trace,
	}, link{s: s, epoch: epoch})
	s.conn = conn
	s.stats.Connects++

	remote := s.cfg.Address
	if addr := nc.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	if _, err := s.machine.Fire(connection.EventEstablished, remote); err != nil {
		s.logger.Error("unexpected state after dial", "error", err)
	}

	timeout := s.cfg.HandshakeTimeout
	s.handshakeTimer = time.AfterFunc(timeout, func() { s.handshakeExpired(epoch) })
	conn.Start(ctx)
}

// failLocked drops the current connection and schedules a reconnect.
func (s *Session) failLocked(cause error) {
	stopTimer(&s.handshakeTimer)
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	if _, err := s.machine.Fire(connection.EventFail, cause.Error()); err != nil {
		s.logger.Debug("failure ignored", "error", cause, "state", s.machine.State())
		return
	}

	s.epoch++
	epoch := s.epoch
	delay := s.backoff.Next()
	s.stats.Reconnects++
	s.metrics.reconnect(s.cfg.DeviceID)
	s.warn.Warn("connection", "device connection lost", "error", cause, "retry_in", delay)

	s.retryTimer = time.AfterFunc(delay, func() { s.retry(epoch) })
	s.scheduleDrainLocked()
}

func (s *Session) retry(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch {
		return
	}
	s.retryTimer = nil
	s.connectLocked(connection.EventRetry, "backoff elapsed")
}

func (s *Session) handshakeExpired(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch || s.machine.State() != connection.StateAwaitingHandshake {
		return
	}
	s.handshakeTimer = nil
	s.failLocked(ErrHandshakeTimeout)
}

func (s *Session) connectionLost(epoch uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch {
		return
	}
	s.failLocked(err)
}

// onTransition runs inside Machine.Fire with s.mu held.
func (s *Session) onTransition(t connection.Transition) {
	s.metrics.state(s.cfg.DeviceID, t.To)
	s.traceState(log.StateEntityConnection, t.From.String(), t.To.String(), t.Reason)

	switch {
	case t.To == connection.StateActive:
		s.logger.Info("device active", "connection", s.connID)
	case t.To == connection.StateBackoffWait:
		s.logger.Debug("connection state", "from", t.From, "to", t.To, "reason", t.Reason)
	default:
		s.logger.Debug("connection state", "from", t.From, "to", t.To)
	}

	if s.closed {
		return
	}
	if t.To == connection.StateActive {
		s.dispatch.push(func() { s.handler.OnAvailability(true) })
	} else if t.From == connection.StateActive {
		s.dispatch.push(func() { s.handler.OnAvailability(false) })
	}
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// link routes connection callbacks to the session, tagged with the
// epoch the connection was opened in.
type link struct {
	s     *Session
	epoch uint64
}

func (l link) OnFrame(frame []byte)     { l.s.handleFrame(l.epoch, frame) }
func (l link) OnOverflow(discarded int) { l.s.handleOverflow(l.epoch, discarded) }
func (l link) OnClose(err error)        { l.s.connectionLost(l.epoch, err) }

var _ transport.ConnectionHandler = link{}
