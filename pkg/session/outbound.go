package session

import (
	"fmt"
	"time"

	"github.com/halink-protocol/halink-go/pkg/connection"
	"github.com/halink-protocol/halink-go/pkg/log"
	"github.com/halink-protocol/halink-go/pkg/wire"
)

// transmitLocked encodes cmd with the negotiated SET mode and writes its
// frames. A write failure tears the connection down.
func (s *Session) transmitLocked(cmd wire.SetCommand) error {
	if s.conn == nil || s.model == nil {
		return ErrNotActive
	}

	frames, err := s.model.Encoder().Encode(cmd, s.now())
	if err != nil {
		return err
	}

	for _, frame := range frames {
		if err := s.conn.Send(frame); err != nil {
			epoch := s.epoch
			go s.connectionLost(epoch, fmt.Errorf("write: %w", err))
			return err
		}
		s.stats.FramesOut++
		s.metrics.frameSent(s.cfg.DeviceID)
	}

	s.traceMessage(log.DirectionOut, log.MessageTypeSet, cmd.Keys(), nil)
	return nil
}

// scheduleDrainLocked arms the drain timer if the queue is non-empty.
//
// While Active the next drain is spaced delay_ms after the previous one.
// Otherwise the timer only wakes up to expire the head entry; becoming
// Active reschedules it.
func (s *Session) scheduleDrainLocked() {
	if s.closed || s.drainTimer != nil {
		return
	}
	head, ok := s.queue.head()
	if !ok {
		return
	}

	now := s.now()
	var wait time.Duration
	if s.machine.State() == connection.StateActive && s.model != nil {
		if !s.lastDrain.IsZero() {
			wait = s.lastDrain.Add(s.model.Delay()).Sub(now)
		}
	} else {
		wait = head.expiresAt.Sub(now) + time.Millisecond
	}
	wait = max(wait, 0)

	gen := s.drainGen
	s.drainTimer = time.AfterFunc(wait, func() { s.drain(gen) })
}

func (s *Session) stopDrainLocked() {
	stopTimer(&s.drainTimer)
	s.drainGen++
}

func (s *Session) rescheduleDrainLocked() {
	s.stopDrainLocked()
	s.scheduleDrainLocked()
}

// drain sends at most one queued command.
func (s *Session) drain(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.drainGen {
		return
	}
	s.drainTimer = nil

	now := s.now()
	s.expireLocked(now)

	if s.machine.State() == connection.StateActive {
		if item, ok := s.queue.pop(); ok {
			s.lastDrain = now
			if err := s.transmitLocked(item.cmd); err != nil {
				s.stats.SetsRejected++
				s.warn.Warn("drain", "queued SET not sent", "keys", item.cmd.Keys(), "error", err)
			} else {
				s.stats.SetsSent++
				s.traceQueue("SENT", item.cmd)
			}
		}
	}

	s.metrics.queueDepth(s.cfg.DeviceID, s.queue.len())
	s.scheduleDrainLocked()
}

func (s *Session) expireLocked(now time.Time) {
	n := s.queue.expire(now)
	if n == 0 {
		return
	}
	s.stats.SetsExpired += uint64(n)
	s.metrics.expired(s.cfg.DeviceID, n)
	s.traceState(log.StateEntityQueue, "", "EXPIRED", fmt.Sprintf("%d dropped", n))
	s.warn.Warn("expired", "dropping expired SET commands", "count", n, "ttl", s.cfg.SetTTL)
}
