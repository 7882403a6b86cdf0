package session

import (
	"errors"

	"github.com/halink-protocol/halink-go/pkg/connection"
	"github.com/halink-protocol/halink-go/pkg/log"
	"github.com/halink-protocol/halink-go/pkg/wire"
)

func (s *Session) handleFrame(epoch uint64, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch {
		return
	}
	s.stats.FramesIn++
	s.metrics.frameReceived(s.cfg.DeviceID)

	msg, err := wire.Parse(frame)
	if err != nil {
		s.parseFailed(err)
		return
	}

	switch msg.Kind {
	case wire.KindConfig:
		s.handleConfig(msg.Body)
	case wire.KindState:
		s.handleState(msg.Body)
	case wire.KindEvent:
		s.handleEvent(msg.Body)
	}
}

func (s *Session) handleOverflow(epoch uint64, discarded int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch {
		return
	}
	s.stats.Overflows++
	s.metrics.overflow(s.cfg.DeviceID)
	s.warn.Warn("overflow", "inbound frame too large, discarded", "bytes", discarded, "max", s.cfg.MaxFrameSize)
}

func (s *Session) parseFailed(err error) {
	reason := wire.ParseMalformed.String()
	var pe *wire.ParseError
	if errors.As(err, &pe) {
		reason = pe.Reason.String()
	}

	s.stats.ParseErrors++
	s.metrics.parseError(s.cfg.DeviceID, reason)
	s.traceError(log.LayerWire, err, reason)
	s.warn.Warn("parse:"+reason, "dropping unparseable frame", "reason", reason, "error", err)
}

func (s *Session) handleConfig(body any) {
	model, err := s.normalizer.Config(body)
	if err != nil {
		reason := "invalid"
		var ce *wire.ConfigError
		if errors.As(err, &ce) {
			reason = ce.Reason.String()
		}
		s.stats.ConfigErrors++
		s.metrics.configError(s.cfg.DeviceID, reason)
		s.traceError(log.LayerSession, err, reason)
		s.warn.Warn("config:"+reason, "rejecting CONFIG", "reason", reason, "error", err)
		return
	}

	res := s.registry.ApplyConfig(model, s.cfg.EntityPolicy)
	s.model = model
	s.stats.Configs++
	s.stats.LastConfig = s.now()

	for _, key := range res.Skipped {
		s.logger.Warn("skipping entity of unknown platform", "key", key)
	}
	s.logger.Info("config accepted",
		"entities", len(model.Entities),
		"added", len(res.Added),
		"removed", len(res.Removed),
		"set_mode", model.SetMode,
		"delay_ms", model.DelayMS)

	keys := make([]string, len(model.Entities))
	for i, e := range model.Entities {
		keys[i] = e.Key
	}
	s.traceMessage(log.DirectionIn, log.MessageTypeConfig, keys, nil)
	s.traceState(log.StateEntityConfig, "", "ACCEPTED", "")

	cfg := *model.Clone()
	s.dispatch.push(func() { s.handler.OnConfig(cfg) })

	if s.machine.State() == connection.StateAwaitingHandshake {
		stopTimer(&s.handshakeTimer)
		if _, err := s.machine.Fire(connection.EventHandshake, "config accepted"); err == nil {
			s.backoff.Reset()
		}
	}
	s.rescheduleDrainLocked()
}

func (s *Session) handleState(body any) {
	deltas, err := s.normalizer.State(body)
	if err != nil {
		s.parseFailed(err)
		return
	}

	res := s.registry.ApplyDeltas(deltas, s.now())
	if len(res.Unknown) > 0 {
		s.logger.Debug("state for undeclared entities", "keys", res.Unknown)
	}

	keys := make([]string, len(deltas))
	for i, d := range deltas {
		keys[i] = d.EntityKey
	}
	s.traceMessage(log.DirectionIn, log.MessageTypeState, keys, nil)

	if len(deltas) > 0 {
		s.dispatch.push(func() { s.handler.OnStateDelta(deltas) })
	}
}

func (s *Session) handleEvent(body any) {
	records, err := s.normalizer.Events(body)
	if err != nil {
		s.parseFailed(err)
		return
	}

	for _, rec := range records {
		s.traceMessage(log.DirectionIn, log.MessageTypeEvent, []string{rec.Key}, rec.Payload)
		s.dispatch.push(func() { s.handler.OnEvent(rec) })
	}
	s.stats.Events += uint64(len(records))
}
