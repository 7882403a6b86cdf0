package session

import (
	"strings"
	"time"

	"github.com/halink-protocol/halink-go/pkg/log"
	"github.com/halink-protocol/halink-go/pkg/wire"
)

func (s *Session) event(dir log.Direction, layer log.Layer, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		RemoteAddr:   s.cfg.Address,
		DeviceID:     s.cfg.DeviceID,
	}
}

func (s *Session) traceState(entity log.StateEntity, from, to, reason string) {
	if s.trace == nil {
		return
	}
	ev := s.event(log.DirectionIn, log.LayerSession, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   entity,
		OldState: from,
		NewState: to,
		Reason:   reason,
	}
	s.trace.Log(ev)
}

func (s *Session) traceMessage(dir log.Direction, typ log.MessageType, keys []string, payload any) {
	if s.trace == nil {
		return
	}
	ev := s.event(dir, log.LayerWire, log.CategoryMessage)
	ev.Message = &log.MessageEvent{
		Type:        typ,
		Keys:        keys,
		EntityCount: len(keys),
		Payload:     payload,
	}
	s.trace.Log(ev)
}

func (s *Session) traceQueue(state string, cmd wire.SetCommand) {
	if s.trace == nil {
		return
	}
	ev := s.event(log.DirectionOut, log.LayerSession, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntityQueue,
		NewState: state,
		Reason:   strings.Join(cmd.Keys(), ","),
	}
	s.trace.Log(ev)
}

func (s *Session) traceError(layer log.Layer, err error, reason string) {
	if s.trace == nil {
		return
	}
	ev := s.event(log.DirectionIn, layer, log.CategoryError)
	ev.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Reason:  reason,
	}
	s.trace.Log(ev)
}
